package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/pwkeeper/internal/logging"
	pb "github.com/dmitrijs2005/pwkeeper/internal/proto"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// authService is what the transport needs from services.AuthService.
type authService interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	IssueTokensForUser(ctx context.Context, user *models.User, deviceName, platform string) (*models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) (int64, error)
	VerifyAccessToken(ctx context.Context, accessToken string) (*models.User, error)
}

type GRPCServer struct {
	pb.UnimplementedAuthServiceServer
	address      string
	auth         authService
	health       *health.Server
	interceptors []grpc.UnaryServerInterceptor
	logger       logging.Logger
}

// NewGRPCServer builds the server. hs may be nil to skip the standard health
// service; extra interceptors run before the built-in ones.
func NewGRPCServer(address string, l logging.Logger, svc authService, hs *health.Server, interceptors ...grpc.UnaryServerInterceptor) *GRPCServer {
	return &GRPCServer{
		address:      address,
		auth:         svc,
		health:       hs,
		interceptors: interceptors,
		logger:       l.With("module", "grpc_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	chain := append([]grpc.UnaryServerInterceptor{}, s.interceptors...)
	chain = append(chain, s.loggingInterceptor, s.accessTokenInterceptor)

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(chain...))
	pb.RegisterAuthServiceServer(srv, s)
	if s.health != nil {
		healthpb.RegisterHealthServer(srv, s.health)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		if s.health != nil {
			s.health.Shutdown()
		}
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	<-stopped
	return nil
}

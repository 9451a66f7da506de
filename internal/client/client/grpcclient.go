package client

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	pb "github.com/dmitrijs2005/pwkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// tokenExpiredMessage is the status message the server uses for an expired
// access token.
const tokenExpiredMessage = "token expired"

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AuthorizationHeaderName, "Bearer "+token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = access, refresh
}

// accessTokenInterceptor attaches the access token to calls and, when the
// server reports it expired, rotates the pair once and retries.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	access, refresh := s.tokens()
	if access == "" || method == pb.AuthService_Refresh_FullMethodName || method == pb.AuthService_Login_FullMethodName || method == pb.AuthService_Register_FullMethodName {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	err := invoker(withAccessToken(ctx, access), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != tokenExpiredMessage || refresh == "" {
		return err
	}

	pair := &pb.RefreshResponse{}
	if err := invoker(ctx, pb.AuthService_Refresh_FullMethodName, &pb.RefreshRequest{RefreshToken: refresh}, pair, cc, opts...); err != nil {
		return err
	}
	s.setTokens(pair.GetAccessToken(), pair.GetRefreshToken())

	// Tokens refreshed, retry with the new access token.
	return invoker(withAccessToken(ctx, pair.GetAccessToken()), method, req, reply, cc, opts...)
}

// NewAuthClient connects to endpointURL. Extra options are appended to the
// defaults, which use insecure transport credentials.
func NewAuthClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}

	conn, err := grpc.NewClient(s.endpointURL, append(dialOpts, opts...)...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) LoggedIn() bool {
	access, _ := s.tokens()
	return access != ""
}

func (s *GRPCClient) Register(ctx context.Context, email, password string) (*pb.User, error) {
	resp, err := s.client.Register(ctx, &pb.RegisterRequest{Email: email, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.GetUser(), nil
}

// Login authenticates and keeps the issued pair for later calls.
func (s *GRPCClient) Login(ctx context.Context, email, password, deviceName string) error {
	req := &pb.LoginRequest{Email: email, Password: password, DeviceName: deviceName, Platform: runtime.GOOS}

	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return s.mapError(err)
	}

	s.setTokens(resp.GetAccessToken(), resp.GetRefreshToken())
	return nil
}

func (s *GRPCClient) Refresh(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	resp, err := s.client.Refresh(ctx, &pb.RefreshRequest{RefreshToken: refresh})
	if err != nil {
		return s.mapError(err)
	}

	s.setTokens(resp.GetAccessToken(), resp.GetRefreshToken())
	return nil
}

// Logout revokes the current session and forgets the local tokens.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, refresh := s.tokens()
	if refresh == "" {
		return ErrNotLoggedIn
	}

	if _, err := s.client.Logout(ctx, &pb.LogoutRequest{RefreshToken: refresh}); err != nil {
		return s.mapError(err)
	}

	s.setTokens("", "")
	return nil
}

// LogoutAll revokes every session of the current user.
func (s *GRPCClient) LogoutAll(ctx context.Context) (int64, error) {
	if !s.LoggedIn() {
		return 0, ErrNotLoggedIn
	}

	resp, err := s.client.LogoutAll(ctx, &pb.LogoutAllRequest{})
	if err != nil {
		return 0, s.mapError(err)
	}

	s.setTokens("", "")
	return resp.GetRevoked(), nil
}

func (s *GRPCClient) Me(ctx context.Context) (*pb.User, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.Me(ctx, &pb.MeRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.GetUser(), nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("%w: %s", ErrUnauthorized, st.Message())
	case codes.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrForbidden, st.Message())
	case codes.AlreadyExists:
		return ErrAlreadyExists
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidInput, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}

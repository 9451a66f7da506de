package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	pb "github.com/dmitrijs2005/pwkeeper/internal/proto"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func (s *GRPCServer) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.RegisterResponse, error) {
	user, err := s.auth.Register(ctx, req.GetEmail(), req.GetPassword())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &pb.RegisterResponse{User: toProtoUser(user)}, nil
}

// Login checks the credentials and issues a pair bound to the calling device.
func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {
	user, err := s.auth.Authenticate(ctx, req.GetEmail(), req.GetPassword())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if !user.IsActive {
		return nil, s.toStatus(ctx, common.ErrInactiveUser)
	}

	device, platform := req.GetDeviceName(), req.GetPlatform()
	if device == "" {
		device = firstMetadata(ctx, common.UserAgentHeaderName)
	}
	if platform == "" {
		platform = firstMetadata(ctx, common.ClientPlatformHeaderName)
	}

	pair, err := s.auth.IssueTokensForUser(ctx, user, device, platform)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &pb.LoginResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, TokenType: pair.TokenType}, nil
}

func (s *GRPCServer) Refresh(ctx context.Context, req *pb.RefreshRequest) (*pb.RefreshResponse, error) {
	pair, err := s.auth.Refresh(ctx, req.GetRefreshToken())
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &pb.RefreshResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken, TokenType: pair.TokenType}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *pb.LogoutRequest) (*pb.LogoutResponse, error) {
	if err := s.auth.Logout(ctx, req.GetRefreshToken()); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &pb.LogoutResponse{}, nil
}

func (s *GRPCServer) LogoutAll(ctx context.Context, _ *pb.LogoutAllRequest) (*pb.LogoutAllResponse, error) {
	user, ok := userFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	n, err := s.auth.LogoutAll(ctx, user.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &pb.LogoutAllResponse{Revoked: n}, nil
}

func (s *GRPCServer) Me(ctx context.Context, _ *pb.MeRequest) (*pb.MeResponse, error) {
	user, ok := userFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	return &pb.MeResponse{User: toProtoUser(user)}, nil
}

// toProtoUser exposes the public fields only.
func toProtoUser(u *models.User) *pb.User {
	p := u.Public()
	return &pb.User{
		Id:          p.ID,
		Email:       p.Email,
		IsActive:    p.IsActive,
		IsSuperuser: p.IsSuperuser,
		CreatedAt:   timestamppb.New(p.CreatedAt),
	}
}

// toStatus maps service errors onto gRPC codes. Messages never echo
// credentials or tokens.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	var ve *common.ValidationError

	switch {
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, common.ErrDuplicateEmail):
		return status.Error(codes.AlreadyExists, "email already registered")
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "incorrect email or password")
	case errors.Is(err, common.ErrInactiveUser):
		return status.Error(codes.PermissionDenied, "inactive user")
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, common.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "service unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	s.logger.Error(ctx, "unhandled error", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

type ctxKey string

const userKey ctxKey = "user"

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func userFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}

package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	pb "github.com/dmitrijs2005/pwkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// protectedMethods require a bearer access token.
var protectedMethods = map[string]struct{}{
	pb.AuthService_Me_FullMethodName:        {},
	pb.AuthService_LogoutAll_FullMethodName: {},
}

// accessTokenInterceptor resolves "authorization: Bearer <token>" to the
// active user and stores it in the context of protected methods.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if _, ok := protectedMethods[info.FullMethod]; !ok {
		return handler(ctx, req)
	}

	token, ok := bearerToken(firstMetadata(ctx, common.AuthorizationHeaderName))
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	user, err := s.auth.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return handler(withUser(ctx, user), req)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerTokenType) {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// loggingInterceptor records every call with its outcome and duration.
func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	switch code {
	case codes.OK:
		s.logger.Debug(ctx, "rpc handled", args...)
	case codes.Internal, codes.Unavailable:
		s.logger.Error(ctx, "rpc failed", args...)
	default:
		s.logger.Info(ctx, "rpc rejected", args...)
	}

	return resp, err
}

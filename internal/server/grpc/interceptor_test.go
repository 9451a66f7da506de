package grpc

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	pb "github.com/dmitrijs2005/pwkeeper/internal/proto"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, ok := bearerToken(tt.header)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestAccessTokenInterceptor(t *testing.T) {
	user := &models.User{ID: 5, Email: "d@example.com", IsActive: true}
	f := &fakeAuth{verifyAccess: func(token string) (*models.User, error) {
		switch token {
		case "good":
			return user, nil
		case "stale":
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrTokenSignature
	}}
	s := newTestServer(f)

	var seen *models.User
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = userFromContext(ctx)
		return "ok", nil
	}

	call := func(method, header string) error {
		seen = nil
		ctx := context.Background()
		if header != "" {
			ctx = metadata.NewIncomingContext(ctx, metadata.Pairs(common.AuthorizationHeaderName, header))
		}
		_, err := s.accessTokenInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
		return err
	}

	t.Run("public method passes through", func(t *testing.T) {
		require.NoError(t, call(pb.AuthService_Login_FullMethodName, ""))
		assert.Nil(t, seen)
	})

	t.Run("valid token", func(t *testing.T) {
		require.NoError(t, call(pb.AuthService_Me_FullMethodName, "Bearer good"))
		require.NotNil(t, seen)
		assert.Equal(t, int64(5), seen.ID)
	})

	t.Run("missing header", func(t *testing.T) {
		err := call(pb.AuthService_LogoutAll_FullMethodName, "")
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
		assert.Nil(t, seen)
	})

	t.Run("expired", func(t *testing.T) {
		err := call(pb.AuthService_Me_FullMethodName, "Bearer stale")
		st, _ := status.FromError(err)
		assert.Equal(t, codes.Unauthenticated, st.Code())
		assert.Equal(t, "token expired", st.Message())
	})

	t.Run("tampered", func(t *testing.T) {
		err := call(pb.AuthService_Me_FullMethodName, "Bearer forged")
		st, _ := status.FromError(err)
		assert.Equal(t, "invalid token", st.Message())
	})
}

func TestLoggingInterceptor_PassesThrough(t *testing.T) {
	s := newTestServer(&fakeAuth{})

	resp, err := s.loggingInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: pb.AuthService_Me_FullMethodName},
		func(context.Context, any) (any, error) { return nil, status.Error(codes.NotFound, "x") })
	assert.Nil(t, resp)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/dmitrijs2005/eventcheckin/internal/logging"
	pb "github.com/dmitrijs2005/eventcheckin/internal/proto"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	"github.com/dmitrijs2005/eventcheckin/internal/server/password"
	"github.com/dmitrijs2005/eventcheckin/internal/server/repositories/users"
	"github.com/dmitrijs2005/eventcheckin/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newBufconnClient(t *testing.T) (pb.AuthServiceClient, *users.MemoryRepository) {
	t.Helper()

	h, err := password.NewHasher(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	iss, err := auth.NewIssuer([]byte("access-secret"), []byte("refresh-secret"), 15*time.Minute, time.Hour)
	require.NoError(t, err)
	repo := users.NewMemoryRepository()
	svc := services.NewAuthService(repo, h, iss, logging.Nop{}, services.AuthServiceOptions{})

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = NewGRPCServer("", logging.Nop{}, svc).Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return pb.NewAuthServiceClient(conn), repo
}

func withMD(kv ...string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), kv...)
}

func TestHandlers_FullLifecycle(t *testing.T) {
	c, repo := newBufconnClient(t)

	ping, err := c.Ping(context.Background(), &pb.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", ping.Status)

	signup, err := c.Signup(context.Background(), &pb.SignupRequest{Email: "Ann@Example.com", Name: "Ann", Password: "secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, signup.AccessToken)
	require.NotEmpty(t, signup.RefreshToken)

	_, err = c.Signup(context.Background(), &pb.SignupRequest{Email: "ann@example.com", Name: "Ann", Password: "secret123"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	me, err := c.Me(withMD(common.AccessTokenHeaderName, signup.AccessToken), &pb.MeRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", me.Email)
	assert.Equal(t, "user", me.Role)

	refreshed, err := c.Refresh(withMD(common.RefreshTokenCookieName, signup.RefreshToken), &pb.RefreshRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, signup.RefreshToken, refreshed.RefreshToken)
	assert.Equal(t, me.UserID, refreshed.User.UserID)

	// bearer fallback
	again, err := c.Refresh(withMD(common.AuthorizationHeaderName, "Bearer "+refreshed.RefreshToken), &pb.RefreshRequest{})
	require.NoError(t, err)

	// replay of an already rotated token
	_, err = c.Refresh(withMD(common.RefreshTokenCookieName, signup.RefreshToken), &pb.RefreshRequest{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	u, err := repo.FindByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.TokenVersion)
	assert.False(t, u.HasSession())

	_, err = c.Refresh(withMD(common.RefreshTokenCookieName, again.RefreshToken), &pb.RefreshRequest{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	signin, err := c.Signin(context.Background(), &pb.SigninRequest{Email: "ann@example.com", Password: "secret123"})
	require.NoError(t, err)

	out, err := c.Logout(withMD(common.AuthorizationHeaderName, "Bearer "+signin.AccessToken), &pb.LogoutRequest{})
	require.NoError(t, err)
	assert.True(t, out.Success)

	_, err = c.Refresh(withMD(common.RefreshTokenCookieName, signin.RefreshToken), &pb.RefreshRequest{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestHandlers_Errors(t *testing.T) {
	c, _ := newBufconnClient(t)

	_, err := c.Signup(context.Background(), &pb.SignupRequest{Email: "bad", Name: "A", Password: "secret123"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.Signin(context.Background(), &pb.SigninRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.Refresh(context.Background(), &pb.RefreshRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.Refresh(withMD(common.RefreshTokenCookieName, "forged.token.value"), &pb.RefreshRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = c.Me(context.Background(), &pb.MeRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{common.ErrValidation, codes.InvalidArgument},
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{common.ErrTokenExpired, codes.Unauthenticated},
		{common.ErrInvalidToken, codes.Unauthenticated},
		{common.ErrForbidden, codes.PermissionDenied},
		{common.ErrConflict, codes.AlreadyExists},
		{common.ErrorNotFound, codes.NotFound},
		{common.ErrorInternal, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}
}

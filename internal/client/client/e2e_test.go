package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/client/models"
	"github.com/dmitrijs2005/eventcheckin/internal/logging"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	servergrpc "github.com/dmitrijs2005/eventcheckin/internal/server/grpc"
	"github.com/dmitrijs2005/eventcheckin/internal/server/password"
	"github.com/dmitrijs2005/eventcheckin/internal/server/repositories/users"
	"github.com/dmitrijs2005/eventcheckin/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T, accessTTL time.Duration) *GRPCClient {
	t.Helper()

	h, err := password.NewHasher(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	iss, err := auth.NewIssuer([]byte("access-secret"), []byte("refresh-secret"), accessTTL, time.Hour)
	require.NoError(t, err)
	svc := services.NewAuthService(users.NewMemoryRepository(), h, iss, logging.Nop{}, services.AuthServiceOptions{})

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = servergrpc.NewGRPCServer("", logging.Nop{}, svc).Serve(ctx, lis)
	}()

	c, err := NewCheckinClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = c.Close()
		cancel()
		<-done
	})
	return c
}

func TestGRPCClient_SessionLifecycle(t *testing.T) {
	c := startServer(t, 15*time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	_, err := c.Me(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)

	require.NoError(t, c.Signup(ctx, "Ann@Example.com", "Ann", "secret123"))
	require.ErrorIs(t, c.Signup(ctx, "ann@example.com", "Ann", "secret123"), ErrConflict)
	require.ErrorIs(t, c.Signup(ctx, "not-an-email", "Ann", "secret123"), ErrInvalidInput)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", me.Email)
	assert.Equal(t, "Ann", me.Name)

	before := c.Session()
	p, err := c.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, me.UserID, p.UserID)
	assert.NotEqual(t, before.RefreshToken, c.Session().RefreshToken)

	require.NoError(t, c.Logout(ctx))
	assert.True(t, c.Session().Empty())

	require.ErrorIs(t, c.Signin(ctx, "ann@example.com", "wrong-password"), ErrUnauthorized)
	require.NoError(t, c.Signin(ctx, "ANN@example.com", "secret123"))
	assert.False(t, c.Session().Empty())
}

func TestGRPCClient_ReplayedRefreshTokenRevokesSession(t *testing.T) {
	c := startServer(t, 15*time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Signup(ctx, "bob@example.com", "Bob", "secret123"))
	stolen := c.Session()

	_, err := c.Refresh(ctx)
	require.NoError(t, err)
	legit := c.Session()

	// an attacker replays the rotated-out token
	c.SetSession(stolen)
	_, err = c.Refresh(ctx)
	require.ErrorIs(t, err, ErrForbidden)
	assert.True(t, c.Session().Empty())

	// the legitimate holder is revoked as well
	c.SetSession(legit)
	_, err = c.Refresh(ctx)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestGRPCClient_TransparentRefreshOnExpiredAccessToken(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the access token to expire")
	}
	c := startServer(t, time.Second)
	ctx := context.Background()

	var persisted []models.Session
	c.OnSessionChange(func(s models.Session) { persisted = append(persisted, s) })

	require.NoError(t, c.Signup(ctx, "cat@example.com", "Cat", "secret123"))
	first := c.Session()

	time.Sleep(2100 * time.Millisecond)

	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cat@example.com", me.Email)
	assert.NotEqual(t, first.AccessToken, c.Session().AccessToken)
	assert.NotEqual(t, first.RefreshToken, c.Session().RefreshToken)
	require.Len(t, persisted, 2)
	assert.Equal(t, c.Session(), persisted[1])
}

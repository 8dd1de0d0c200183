package cli

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/client/client"
	"github.com/dmitrijs2005/eventcheckin/internal/client/config"
	"github.com/stretchr/testify/require"
)

func TestSetMode_ChangesAndPrintsOnce(t *testing.T) {
	out := capturePrint(t)
	app := &App{}

	app.setMode(ModeOnline)
	require.Equal(t, ModeOnline, app.getMode())
	require.Equal(t, []string{"Switched to online mode"}, out())

	app.setMode(ModeOnline)
	require.Len(t, out(), 1)

	app.setMode(ModeOffline)
	require.Equal(t, ModeOffline, app.getMode())
	require.Len(t, out(), 2)
}

func TestGetStatus(t *testing.T) {
	app := &App{}
	require.Empty(t, app.getStatus())

	app.setEmail("ann@example.com")
	require.Equal(t, "(ann@example.com )", app.getStatus())

	app.mode = ModeOnline
	require.Equal(t, "(ann@example.com online)", app.getStatus())
}

func TestCheckReachable_FollowsPing(t *testing.T) {
	capturePrint(t)
	f := &fakeAuth{}
	app := &App{authService: f}

	app.checkReachable(context.Background())
	require.Equal(t, ModeOnline, app.getMode())

	f.pingErr = errors.New("down")
	app.checkReachable(context.Background())
	require.Equal(t, ModeOffline, app.getMode())
}

func TestStartOnlineStatusWatcher_StopsOnCancel(t *testing.T) {
	capturePrint(t)
	app := &App{authService: &fakeAuth{}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.StartOnlineStatusWatcher(ctx, 10*time.Millisecond)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
	require.Equal(t, ModeOnline, app.getMode())
}

func TestRun_OneShotCommand(t *testing.T) {
	out := capturePrint(t)
	f := &fakeAuth{signedIn: true, profile: ann}
	app := &App{authService: f, config: &config.Config{RequestTimeout: time.Second}}

	require.Equal(t, 0, app.Run(context.Background(), []string{"me"}))
	require.Contains(t, out(), "Ann <ann@example.com> (role: user, id: u1)")
	require.True(t, f.closed)

	require.Equal(t, 2, (&App{authService: &fakeAuth{}}).Run(context.Background(), []string{"bogus"}))
	require.Equal(t, 1, (&App{authService: &fakeAuth{meErr: client.ErrNotSignedIn}}).Run(context.Background(), []string{"me"}))
}

func TestNewApp_CreatesSessionStore(t *testing.T) {
	capturePrint(t)
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SessionFile = filepath.Join(t.TempDir(), "nested", "session.db")
	cfg.ServerEndpointAddr = "127.0.0.1:1"

	app, err := NewApp(context.Background(), cfg)
	require.NoError(t, err)
	require.False(t, app.isLoggedIn())

	_, err = os.Stat(cfg.SessionFile)
	require.NoError(t, err)

	// no server needed to learn we are signed out
	require.Equal(t, 1, app.Run(context.Background(), []string{"me"}))
}

func TestRun_REPLUntilExit(t *testing.T) {
	out := capturePrint(t)
	f := &fakeAuth{}
	app := &App{
		authService: f,
		config:      &config.Config{OnlineCheckInterval: time.Hour},
		reader:      bufio.NewReader(strings.NewReader("help\nexit\n")),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.Equal(t, 0, app.Run(ctx, nil))
	require.Contains(t, out(), "Available commands: signup, signin, exit")
	require.True(t, f.closed)
}

func TestRequestContext(t *testing.T) {
	app := &App{config: &config.Config{RequestTimeout: time.Minute}}
	ctx, cancel := app.requestContext(context.Background())
	defer cancel()
	_, ok := ctx.Deadline()
	require.True(t, ok)

	ctx2, cancel2 := (&App{}).requestContext(context.Background())
	defer cancel2()
	_, ok = ctx2.Deadline()
	require.False(t, ok)
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/client/client"
	"github.com/dmitrijs2005/eventcheckin/internal/client/config"
	"github.com/dmitrijs2005/eventcheckin/internal/client/services"
	"github.com/dmitrijs2005/eventcheckin/internal/filex"
	"github.com/dmitrijs2005/eventcheckin/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	reader      *bufio.Reader

	mu    sync.Mutex
	mode  Mode
	email string
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	sessionFile, err := filex.EnsureParentDir(c.SessionFile)
	if err != nil {
		return nil, err
	}
	db, err := client.InitDatabase(ctx, sessionFile)
	if err != nil {
		return nil, fmt.Errorf("error initializing session store: %w", err)
	}

	apiClient, err := client.NewCheckinClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger := logging.NewForEnv(os.Stderr, "production")
	as := services.NewAuthService(apiClient, db, logger)
	if err := as.RestoreSession(ctx); err != nil {
		_ = apiClient.Close()
		_ = db.Close()
		return nil, err
	}

	return &App{config: c, authService: as, reader: bufio.NewReader(os.Stdin)}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

func (a *App) getMode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setEmail(email string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.email = email
}

func (a *App) isLoggedIn() bool {
	return a.authService.SignedIn()
}

func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.email != "" {
		s = a.email + " "
	}
	if a.mode != "" {
		s += string(a.mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Run executes args as a single command, or starts the REPL when args is
// empty. It returns a process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	defer a.authService.Close(ctx)

	if len(args) > 0 {
		ok, err := runCommand(ctx, a, args[0])
		switch {
		case !ok:
			return 2
		case err != nil:
			return 1
		}
		return 0
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	printlnFn("Event check-in CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
	return 0
}

// StartOnlineStatusWatcher pings the server every interval and flips the
// mode shown in the prompt. It returns when ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.checkReachable(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkReachable(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkReachable(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := a.authService.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	a.setMode(ModeOnline)
}

func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

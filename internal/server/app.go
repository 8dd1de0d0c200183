// Package server assembles the check-in auth server: configuration, the
// credential store, the refresh lock, and the HTTP and gRPC transports.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/eventcheckin/internal/logging"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	"github.com/dmitrijs2005/eventcheckin/internal/server/config"
	gs "github.com/dmitrijs2005/eventcheckin/internal/server/grpc"
	"github.com/dmitrijs2005/eventcheckin/internal/server/httpapi"
	"github.com/dmitrijs2005/eventcheckin/internal/server/locks"
	"github.com/dmitrijs2005/eventcheckin/internal/server/password"
	"github.com/dmitrijs2005/eventcheckin/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/eventcheckin/internal/server/repositories/users"
	"github.com/dmitrijs2005/eventcheckin/internal/server/services"
	"github.com/redis/go-redis/v9"
)

const refreshLockPrefix = "lock:refresh:"

// openDB is a seam for tests.
var openDB = repomanager.Open

type App struct {
	config      *config.Config
	logger      logging.Logger
	authService *services.AuthService
	closers     []io.Closer
}

func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (_ *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	app := &App{config: c, logger: logger}
	// release whatever was opened before a later step failed
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	hasher, err := password.NewHasher(password.Params{
		Memory:      c.Argon2Memory,
		Time:        c.Argon2Time,
		Parallelism: c.Argon2Parallelism,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	issuer, err := auth.NewIssuer(
		[]byte(c.AccessTokenSecret), []byte(c.RefreshTokenSecret),
		c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration,
	)
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}

	repo, err := app.initUsers(ctx)
	if err != nil {
		return nil, err
	}

	app.authService = services.NewAuthService(repo, hasher, issuer, logger, services.AuthServiceOptions{
		Locker:             app.initLocker(),
		StrictTokenVersion: c.StrictTokenVersion,
	})
	return app, nil
}

func (app *App) initUsers(ctx context.Context) (users.Repository, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database configured, users are kept in memory")
		return users.NewMemoryRepository(), nil
	}

	db, err := openDB(ctx, app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db)

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return rm.Users(db), nil
}

func (app *App) initLocker() locks.Locker {
	if app.config.RedisAddr == "" {
		return locks.NewLocalLocker()
	}
	rdb := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	app.closers = append(app.closers, rdb)
	return locks.NewRedisLocker(rdb, refreshLockPrefix, app.logger)
}

func (app *App) cookieConfig() httpapi.CookieConfig {
	cc := httpapi.CookieConfig{
		Secure: app.config.SecureCookies(),
		MaxAge: app.config.RefreshTokenValidityDuration,
	}
	if app.config.IsProduction() {
		cc.Domain = app.config.CookieDomain
	}
	return cc
}

// Close releases the database and Redis connections.
func (app *App) Close() {
	for _, c := range app.closers {
		_ = c.Close()
	}
	app.closers = nil
}

// Run serves HTTP and gRPC until ctx is cancelled, SIGINT/SIGTERM arrives or
// either server fails. The first server error is returned.
func (app *App) Run(ctx context.Context) error {
	defer app.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.logger.Info(ctx, "Starting app...",
		"http", app.config.EndpointAddrHTTP, "grpc", app.config.EndpointAddrGRPC, "env", app.config.Env)

	var runners []func(context.Context) error
	if app.config.EndpointAddrHTTP != "" {
		runners = append(runners, httpapi.NewServer(app.config.EndpointAddrHTTP, app.authService, app.cookieConfig(), app.logger).Run)
	}
	if app.config.EndpointAddrGRPC != "" {
		runners = append(runners, gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService).Run)
	}

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, run := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				once.Do(func() { firstErr = err })
				app.logger.Error(ctx, "server stopped", "error", err)
			}
			cancel()
		}()
	}
	wg.Wait()

	app.logger.Info(context.Background(), "App stopped")
	return firstErr
}

// Main is the server entrypoint used by cmd/server.
func Main() int {
	cfg := config.LoadConfig()
	logger := logging.NewForEnv(os.Stdout, cfg.Env)
	ctx := context.Background()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		return 1
	}
	if err := app.Run(ctx); err != nil {
		return 1
	}
	return 0
}

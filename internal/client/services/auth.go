// Package services contains application services for the check-in CLI.
// This file defines the authentication service: signup, signin, profile
// lookup and logout, with the session token pair kept in the local database.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/client/client"
	"github.com/dmitrijs2005/eventcheckin/internal/client/models"
	"github.com/dmitrijs2005/eventcheckin/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/dmitrijs2005/eventcheckin/internal/dbx"
	"github.com/dmitrijs2005/eventcheckin/internal/logging"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"

	persistTimeout = 5 * time.Second
)

// AuthService defines authentication operations for the CLI.
//
// All methods must honor context cancellation/timeouts. Passwords are taken
// as byte slices and wiped once sent.
type AuthService interface {
	RestoreSession(ctx context.Context) error
	SignedIn() bool
	Signup(ctx context.Context, email, name string, password []byte) (*models.Profile, error)
	Signin(ctx context.Context, email string, password []byte) (*models.Profile, error)
	Me(ctx context.Context) (*models.Profile, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	client client.Client
	db     *sql.DB
	logger logging.Logger
}

// NewAuthService binds the API client to the local database. Every token
// change reported by the client, including a transparent refresh, is written
// back to the metadata table.
func NewAuthService(c client.Client, db *sql.DB, logger logging.Logger) AuthService {
	a := &authService{client: c, db: db, logger: logger.With("module", "auth")}
	c.OnSessionChange(a.persist)
	return a
}

func (a *authService) persist(s models.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := a.saveSession(ctx, s); err != nil {
		a.logger.Warn(ctx, "saving session failed", "error", err)
	}
}

// saveSession writes both tokens in one transaction. An empty session
// removes them.
func (a *authService) saveSession(ctx context.Context, s models.Session) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if s.Empty() {
			if err := repo.Delete(ctx, keyAccessToken); err != nil {
				return err
			}
			return repo.Delete(ctx, keyRefreshToken)
		}
		if err := repo.Set(ctx, keyAccessToken, []byte(s.AccessToken)); err != nil {
			return err
		}
		return repo.Set(ctx, keyRefreshToken, []byte(s.RefreshToken))
	})
}

// RestoreSession loads the tokens saved by a previous run into the client.
// A missing session is not an error.
func (a *authService) RestoreSession(ctx context.Context) error {
	repo := metadata.NewSQLiteRepository(a.db)

	at, err := repo.Get(ctx, keyAccessToken)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	rt, err := repo.Get(ctx, keyRefreshToken)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if len(rt) == 0 {
		return nil
	}

	a.client.SetSession(models.Session{AccessToken: string(at), RefreshToken: string(rt)})
	return nil
}

func (a *authService) SignedIn() bool {
	return !a.client.Session().Empty()
}

func (a *authService) Signup(ctx context.Context, email, name string, password []byte) (*models.Profile, error) {
	defer common.WipeByteArray(password)

	if err := a.client.Signup(ctx, email, name, string(password)); err != nil {
		return nil, fmt.Errorf("signup error: %w", err)
	}
	return a.Me(ctx)
}

func (a *authService) Signin(ctx context.Context, email string, password []byte) (*models.Profile, error) {
	defer common.WipeByteArray(password)

	if err := a.client.Signin(ctx, email, string(password)); err != nil {
		return nil, fmt.Errorf("signin error: %w", err)
	}
	return a.Me(ctx)
}

func (a *authService) Me(ctx context.Context) (*models.Profile, error) {
	p, err := a.client.Me(ctx)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Logout ends the session on the server. When the server cannot be reached
// the local tokens are dropped anyway and the error is reported.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	if errors.Is(err, client.ErrUnavailable) {
		a.client.SetSession(models.Session{})
	}
	return err
}

func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

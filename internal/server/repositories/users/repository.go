// Package users is the credential store: user records with their password
// hash, the hash of the single active refresh token and the token version.
package users

import (
	"context"

	"github.com/dmitrijs2005/eventcheckin/internal/server/models"
)

// Repository persists users. Emails are normalized to lowercase on every
// write and lookup. Lookups of unknown users return common.ErrorNotFound.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)

	// Create inserts a user with token version 0 and no session.
	// Returns common.ErrConflict if the email is taken.
	Create(ctx context.Context, email, name, passwordHash string) (*models.User, error)

	// UpdatePasswordHash replaces the stored password hash, e.g. after the
	// hasher's parameters were raised.
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	// UpdateRefreshTokenHash overwrites the stored hash; nil clears it.
	UpdateRefreshTokenHash(ctx context.Context, id string, hash *string) error

	IncrementTokenVersion(ctx context.Context, id string) (int64, error)

	// SwapRefreshTokenHash replaces the stored hash with next only if it still
	// equals expected. false means another writer got there first.
	SwapRefreshTokenHash(ctx context.Context, id, expected, next string) (bool, error)

	// RevokeSessions bumps the token version and clears the stored hash only
	// if it still equals expected. Concurrent callers that observed the same
	// hash therefore bump the version once between them.
	RevokeSessions(ctx context.Context, id, expected string) (bool, error)

	// InTx runs fn against a repository whose writes commit or roll back
	// together.
	InTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error
}

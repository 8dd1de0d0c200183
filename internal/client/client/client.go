package client

import (
	"context"

	"github.com/dmitrijs2005/eventcheckin/internal/client/models"
)

type Client interface {
	Close() error
	Signup(ctx context.Context, email, name, password string) error
	Signin(ctx context.Context, email, password string) error
	Refresh(ctx context.Context) (*models.Profile, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.Profile, error)
	Ping(ctx context.Context) error
	SetSession(s models.Session)
	Session() models.Session
	OnSessionChange(fn func(models.Session))
}

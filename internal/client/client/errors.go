package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("session revoked, sign in again")
	ErrConflict     = errors.New("email already registered")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotSignedIn  = errors.New("not signed in")
)

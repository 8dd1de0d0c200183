// Package common defines shared constants and sentinel errors used across
// the server, its transports and the CLI client. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("email already in use")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("invalid credentials")
	ErrForbidden      = errors.New("access denied")
	ErrValidation     = errors.New("validation error")

	// Token codec errors.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrBadSignature   = errors.New("token signature is invalid")
	ErrMalformedToken = errors.New("token is malformed")

	// Password hasher errors.
	ErrMalformedHash = errors.New("malformed password hash")
)

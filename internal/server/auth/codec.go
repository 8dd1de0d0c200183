// Package auth signs and verifies the HS256 JWTs used as access and refresh
// tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the fixed token payload:
//
//	{"sub", "email", "tv", "jti", "iat", "exp"}
type Claims struct {
	Email        string `json:"email"`
	TokenVersion int64  `json:"tv"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string { return c.Subject }

func (c *Claims) check() error {
	switch {
	case c.Subject == "":
		return errors.New("missing sub")
	case c.ID == "":
		return errors.New("missing jti")
	case c.ExpiresAt == nil:
		return errors.New("missing exp")
	case c.TokenVersion < 0:
		return errors.New("negative tv")
	}
	return nil
}

// Codec is bound to a single secret. Access and refresh tokens use two
// distinct codecs so neither can be replayed as the other.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Codec{secret: s, now: time.Now}, nil
}

// Sign stamps iat, exp and a fresh jti on a copy of claims and returns the
// compact JWS.
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := c.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = uuid.NewString()

	if err := claims.check(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return s, nil
}

// Verify checks signature, algorithm and expiry. Failures are one of
// common.ErrBadSignature, common.ErrTokenExpired or common.ErrMalformedToken.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, mapError(err)
	}

	if err := claims.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}

	return claims, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrBadSignature
	default:
		return fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}
}

package auth

import (
	"bytes"
	"errors"
	"time"
)

// TokenPair is returned to the client and never persisted.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer owns the access and refresh codecs and their lifetimes.
type Issuer struct {
	access     *Codec
	refresh    *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if bytes.Equal(accessSecret, refreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	a, err := NewCodec(accessSecret)
	if err != nil {
		return nil, err
	}
	r, err := NewCodec(refreshSecret)
	if err != nil {
		return nil, err
	}

	return &Issuer{access: a, refresh: r, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// IssuePair mints an access and a refresh token carrying the same subject,
// email and token version. Each gets its own jti.
func (i *Issuer) IssuePair(userID, email string, tokenVersion int64) (TokenPair, error) {
	claims := Claims{Email: email, TokenVersion: tokenVersion}
	claims.Subject = userID

	at, err := i.access.Sign(claims, i.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	rt, err := i.refresh.Sign(claims, i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: at, RefreshToken: rt}, nil
}

func (i *Issuer) VerifyAccess(token string) (*Claims, error)  { return i.access.Verify(token) }
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) { return i.refresh.Verify(token) }

func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

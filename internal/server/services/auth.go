// Package services contains server-side business logic. This file implements
// AuthService: signup, signin, refresh-token rotation with reuse detection,
// logout and access-token authentication.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/common"
	"github.com/dmitrijs2005/eventcheckin/internal/logging"
	"github.com/dmitrijs2005/eventcheckin/internal/server/auth"
	"github.com/dmitrijs2005/eventcheckin/internal/server/locks"
	"github.com/dmitrijs2005/eventcheckin/internal/server/models"
	"github.com/dmitrijs2005/eventcheckin/internal/server/repositories/users"
)

const minPasswordLength = 6

// PasswordHasher hashes passwords and refresh tokens at rest.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(encoded, plaintext string) (bool, error)
	NeedsRehash(encoded string) (bool, error)
}

type SignupInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type SigninInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshResult is a rotated token pair plus the owner's profile.
type RefreshResult struct {
	Tokens auth.TokenPair
	User   models.Profile
}

type AuthServiceOptions struct {
	// Locker, when set, serializes refreshes per user.
	Locker locks.Locker
	// StrictTokenVersion makes Authenticate reject access tokens whose tv no
	// longer matches the store, revoking them immediately after reuse
	// detection instead of at expiry.
	StrictTokenVersion bool
}

type AuthService struct {
	users  users.Repository
	hasher PasswordHasher
	tokens *auth.Issuer
	logger logging.Logger
	opts   AuthServiceOptions

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(repo users.Repository, hasher PasswordHasher, tokens *auth.Issuer, logger logging.Logger, opts AuthServiceOptions) *AuthService {
	return &AuthService{
		users:  repo,
		hasher: hasher,
		tokens: tokens,
		logger: logger.With("module", "auth"),
		opts:   opts,
	}
}

func validateSignup(in SignupInput) error {
	var errs []error
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != strings.TrimSpace(in.Email) {
		errs = append(errs, errors.New("email is invalid"))
	}
	if strings.TrimSpace(in.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(in.Password) < minPasswordLength {
		errs = append(errs, fmt.Errorf("password must be at least %d characters", minPasswordLength))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", common.ErrValidation, errors.Join(errs...))
	}
	return nil
}

// Signup creates the user and opens its first session. The user row and the
// refresh-token hash are written in one transaction.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*auth.TokenPair, error) {
	if err := validateSignup(in); err != nil {
		return nil, err
	}

	pwHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "hashing password", err)
	}

	var pair auth.TokenPair
	err = s.users.InTx(ctx, func(ctx context.Context, repo users.Repository) error {
		u, err := repo.Create(ctx, in.Email, strings.TrimSpace(in.Name), pwHash)
		if err != nil {
			return err
		}
		pair, err = s.openSession(ctx, repo, u)
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) || errors.Is(err, common.ErrorInternal) {
			return nil, err
		}
		return nil, s.internal(ctx, "signup", err)
	}

	s.logger.Info(ctx, "user signed up", "email", common.NormalizeEmail(in.Email))
	return &pair, nil
}

// CreateUser registers an account on behalf of an administrator. Unlike
// Signup no session is opened; the new user signs in with the given password.
func (s *AuthService) CreateUser(ctx context.Context, in SignupInput) (*models.Profile, error) {
	if err := validateSignup(in); err != nil {
		return nil, err
	}

	pwHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "hashing password", err)
	}

	u, err := s.users.Create(ctx, in.Email, strings.TrimSpace(in.Name), pwHash)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		return nil, s.internal(ctx, "creating user", err)
	}

	s.logger.Info(ctx, "user created by administrator", "user_id", u.ID)
	p := u.Profile()
	return &p, nil
}

// RequireRole returns ErrForbidden unless userID exists and holds one of
// roles. The role is read from the store, so a demotion applies to access
// tokens that are already out.
func (s *AuthService) RequireRole(ctx context.Context, userID string, roles ...string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrForbidden
		}
		return s.internal(ctx, "finding user", err)
	}
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	s.logger.Debug(ctx, "role check failed", "user_id", u.ID, "role", u.Role)
	return common.ErrForbidden
}

// Signin checks credentials and replaces any previous session. Unknown
// email and wrong password are indistinguishable to the caller.
func (s *AuthService) Signin(ctx context.Context, in SigninInput) (*auth.TokenPair, error) {
	u, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(in.Password)
			return nil, common.ErrorUnauthorized
		}
		return nil, s.internal(ctx, "finding user", err)
	}

	ok, err := s.hasher.Verify(u.PasswordHash, in.Password)
	if err != nil {
		return nil, s.internal(ctx, "verifying password", err)
	}
	if !ok {
		s.logger.Debug(ctx, "signin rejected", "user_id", u.ID)
		return nil, common.ErrorUnauthorized
	}

	s.upgradePasswordHash(ctx, u, in.Password)

	pair, err := s.openSession(ctx, s.users, u)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// upgradePasswordHash re-hashes a verified password whose stored hash was made
// with weaker parameters than the current ones. Failures are logged only: the
// old hash still verifies.
func (s *AuthService) upgradePasswordHash(ctx context.Context, u *models.User, password string) {
	stale, err := s.hasher.NeedsRehash(u.PasswordHash)
	if err != nil || !stale {
		return
	}
	h, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn(ctx, "rehashing password failed", "user_id", u.ID, "error", err)
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, h); err != nil {
		s.logger.Warn(ctx, "storing upgraded password hash failed", "user_id", u.ID, "error", err)
		return
	}
	s.logger.Info(ctx, "password hash upgraded", "user_id", u.ID)
}

// RefreshTokens rotates the session of userID. The caller has already
// verified the refresh token's signature and expiry and passes its sub and
// tv claims.
//
// A token that verifies cryptographically but does not match the stored
// hash is a replay of an already rotated token: every session of the user
// is revoked before ErrForbidden is returned.
func (s *AuthService) RefreshTokens(ctx context.Context, userID string, tokenVersion int64, presented string) (*RefreshResult, error) {
	if s.opts.Locker != nil {
		release, err := s.opts.Locker.Lock(ctx, userID)
		if err != nil {
			return nil, s.internal(ctx, "acquiring refresh lock", err)
		}
		defer release()
	}

	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrForbidden
		}
		return nil, s.internal(ctx, "finding user", err)
	}

	if !u.HasSession() {
		return nil, common.ErrForbidden
	}
	// a token from before the last revocation
	if tokenVersion != u.TokenVersion {
		return nil, common.ErrForbidden
	}

	observed := *u.RefreshTokenHash
	match, err := s.hasher.Verify(observed, presented)
	if err != nil {
		return nil, s.internal(ctx, "verifying refresh token", err)
	}

	if !match {
		revoked, err := s.users.RevokeSessions(ctx, u.ID, observed)
		if err != nil {
			return nil, s.internal(ctx, "revoking sessions", err)
		}
		if revoked {
			s.logger.Warn(ctx, "refresh token reuse detected, sessions revoked", "user_id", u.ID)
		}
		return nil, common.ErrForbidden
	}

	pair, err := s.tokens.IssuePair(u.ID, u.Email, u.TokenVersion)
	if err != nil {
		return nil, s.internal(ctx, "issuing tokens", err)
	}
	next, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return nil, s.internal(ctx, "hashing refresh token", err)
	}

	swapped, err := s.users.SwapRefreshTokenHash(ctx, u.ID, observed, next)
	if err != nil {
		return nil, s.internal(ctx, "storing refresh token", err)
	}
	if !swapped {
		// a concurrent rotation or revocation won
		return nil, common.ErrForbidden
	}

	return &RefreshResult{Tokens: pair, User: u.Profile()}, nil
}

// Logout clears the stored refresh-token hash. Already issued access tokens
// stay valid until they expire. Calling it without a session is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	err := s.users.UpdateRefreshTokenHash(ctx, userID, nil)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return s.internal(ctx, "clearing refresh token", err)
	}
	return nil
}

// Me returns the profile of userID.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.Profile, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "finding user", err)
	}
	p := u.Profile()
	return &p, nil
}

// Authenticate verifies an access token. Token errors are returned as is
// (ErrTokenExpired, ErrBadSignature, ErrMalformedToken).
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*auth.Claims, error) {
	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, err
	}
	if !s.opts.StrictTokenVersion {
		return claims, nil
	}

	u, err := s.users.FindByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "finding user", err)
	}
	if u.TokenVersion != claims.TokenVersion {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken checks signature and expiry of a refresh token without
// touching the store.
func (s *AuthService) VerifyRefreshToken(token string) (*auth.Claims, error) {
	return s.tokens.VerifyRefresh(token)
}

// RefreshTTL is the lifetime of issued refresh tokens.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.tokens.RefreshTTL()
}

func (s *AuthService) openSession(ctx context.Context, repo users.Repository, u *models.User) (auth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(u.ID, u.Email, u.TokenVersion)
	if err != nil {
		return auth.TokenPair{}, s.internal(ctx, "issuing tokens", err)
	}
	h, err := s.hasher.Hash(pair.RefreshToken)
	if err != nil {
		return auth.TokenPair{}, s.internal(ctx, "hashing refresh token", err)
	}
	if err := repo.UpdateRefreshTokenHash(ctx, u.ID, &h); err != nil {
		return auth.TokenPair{}, s.internal(ctx, "storing refresh token", err)
	}
	return pair, nil
}

// burnVerify spends the same work as a real password check.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("unused-dummy-password")
	})
	if s.dummyHash != "" {
		_, _ = s.hasher.Verify(s.dummyHash, password)
	}
}

func (s *AuthService) internal(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s: %v", common.ErrorInternal, op, err)
}

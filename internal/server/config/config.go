// Package config handles configuration for the server component:
// defaults, JSON overlay, environment overlay and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"time"
)

const (
	defaultAccessSecret  = "replace_with_long_random_string_for_access"
	defaultRefreshSecret = "replace_with_long_random_string_for_refresh"
)

// Config holds runtime settings for the check-in auth server. It is built
// once at startup and treated as immutable afterwards.
//
// Fields:
//   - Env: "development" or "production"; drives cookie and logging defaults.
//   - EndpointAddrHTTP / EndpointAddrGRPC: bind addresses of the two transports.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory user store.
//   - AccessTokenSecret / RefreshTokenSecret: independent HS256 secrets.
//   - AccessTokenValidityDuration / RefreshTokenValidityDuration: token lifetimes.
//   - CookieDomain / CookieSecure: refresh-token cookie attributes.
//   - RedisAddr: enables the cross-instance per-user refresh lock when set.
//   - StrictTokenVersion: re-check the access token's version against the store on every request.
//   - Argon2*: Argon2id cost parameters.
type Config struct {
	Env                          string
	EndpointAddrHTTP             string
	EndpointAddrGRPC             string
	DatabaseDSN                  string
	AccessTokenSecret            string
	RefreshTokenSecret           string
	AccessTokenValidityDuration  time.Duration
	RefreshTokenValidityDuration time.Duration
	CookieDomain                 string
	CookieSecure                 bool
	RedisAddr                    string
	StrictTokenVersion           bool
	Argon2Memory                 uint32
	Argon2Time                   uint32
	Argon2Parallelism            uint8
}

// LoadDefaults populates Config with development defaults.
// NOTE: the secrets are placeholders and are rejected in production.
func (c *Config) LoadDefaults() {
	c.Env = "development"
	c.EndpointAddrHTTP = ":5100"
	c.EndpointAddrGRPC = ":50051"
	c.DatabaseDSN = ""
	c.AccessTokenSecret = defaultAccessSecret
	c.RefreshTokenSecret = defaultRefreshSecret
	c.AccessTokenValidityDuration = 15 * time.Minute
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.CookieDomain = ""
	c.CookieSecure = false
	c.RedisAddr = ""
	c.StrictTokenVersion = false
	c.Argon2Memory = 64 * 1024
	c.Argon2Time = 3
	c.Argon2Parallelism = 2
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SecureCookies reports whether the refresh cookie must carry Secure and
// SameSite=None.
func (c *Config) SecureCookies() bool {
	return c.IsProduction() || c.CookieSecure
}

// Validate rejects configurations the auth core cannot run safely with.
func (c *Config) Validate() error {
	var errs []error

	if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("access and refresh token secrets must be set"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.IsProduction() && (c.AccessTokenSecret == defaultAccessSecret || c.RefreshTokenSecret == defaultRefreshSecret) {
		errs = append(errs, errors.New("default token secrets are not allowed in production"))
	}
	if c.AccessTokenValidityDuration <= 0 || c.RefreshTokenValidityDuration <= 0 {
		errs = append(errs, errors.New("token validity durations must be positive"))
	}
	if c.EndpointAddrHTTP == "" && c.EndpointAddrGRPC == "" {
		errs = append(errs, errors.New("at least one endpoint address must be set"))
	}

	return errors.Join(errs...)
}

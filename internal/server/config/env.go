package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/timex"
	"github.com/ilyakaznacheev/cleanenv"
)

// EnvConfig lists the environment variables the server understands. The JWT
// and cookie names match the ones existing deployments already export.
// Everything is read as a string so an unset variable never clobbers a value
// coming from defaults or the JSON file.
type EnvConfig struct {
	Env                string `env:"APP_ENV"`
	HTTPAddr           string `env:"HTTP_ADDR"`
	GRPCAddr           string `env:"GRPC_ADDR"`
	DatabaseDSN        string `env:"DATABASE_DSN"`
	AccessSecret       string `env:"JWT_AT_SECRET"`
	AccessExpires      string `env:"JWT_AT_EXPIRES"`
	RefreshSecret      string `env:"JWT_RT_SECRET"`
	RefreshExpires     string `env:"JWT_RT_EXPIRES"`
	CookieDomain       string `env:"COOKIE_DOMAIN"`
	CookieSecure       string `env:"COOKIE_SECURE"`
	RedisAddr          string `env:"REDIS_ADDR"`
	StrictTokenVersion string `env:"STRICT_TOKEN_VERSION"`
}

// readEnv is a seam for tests.
var readEnv = cleanenv.ReadEnv

// parseEnv overlays values from the environment. Malformed durations or
// booleans panic, like a malformed JSON file does.
func parseEnv(config *Config) {
	e := &EnvConfig{}
	if err := readEnv(e); err != nil {
		panic(err)
	}

	setString(&config.Env, e.Env)
	setString(&config.EndpointAddrHTTP, e.HTTPAddr)
	setString(&config.EndpointAddrGRPC, e.GRPCAddr)
	setString(&config.DatabaseDSN, e.DatabaseDSN)
	setString(&config.AccessTokenSecret, e.AccessSecret)
	setString(&config.RefreshTokenSecret, e.RefreshSecret)
	setString(&config.CookieDomain, e.CookieDomain)
	setString(&config.RedisAddr, e.RedisAddr)

	setDuration(&config.AccessTokenValidityDuration, "JWT_AT_EXPIRES", e.AccessExpires)
	setDuration(&config.RefreshTokenValidityDuration, "JWT_RT_EXPIRES", e.RefreshExpires)
	setBool(&config.CookieSecure, "COOKIE_SECURE", e.CookieSecure)
	setBool(&config.StrictTokenVersion, "STRICT_TOKEN_VERSION", e.StrictTokenVersion)
}

func setDuration(dst *time.Duration, name, v string) {
	if v == "" {
		return
	}
	d, err := timex.ParseDuration(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", name, err))
	}
	*dst = d
}

func setBool(dst *bool, name, v string) {
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Errorf("%s: %w", name, err))
	}
	*dst = b
}

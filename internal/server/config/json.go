package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/eventcheckin/internal/flagx"
	"github.com/dmitrijs2005/eventcheckin/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "15m"/"7d" strings and integer nanoseconds work.
// Pointer fields distinguish "absent" from the zero value.
type JsonConfig struct {
	Env                          string          `json:"env"`
	EndpointAddrHTTP             string          `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string          `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string          `json:"database_dsn"`
	AccessTokenSecret            string          `json:"access_token_secret"`
	RefreshTokenSecret           string          `json:"refresh_token_secret"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	CookieDomain                 string          `json:"cookie_domain"`
	CookieSecure                 *bool           `json:"cookie_secure"`
	RedisAddr                    string          `json:"redis_addr"`
	StrictTokenVersion           *bool           `json:"strict_token_version"`
	Argon2Memory                 uint32          `json:"argon2_memory"`
	Argon2Time                   uint32          `json:"argon2_time"`
	Argon2Parallelism            uint8           `json:"argon2_parallelism"`
}

// parseJson overlays values from the JSON file named by -c / -config.
// Without the flag nothing is loaded. An unreadable or invalid file panics:
// the server must not start on a half-applied configuration.
func parseJson(config *Config) {
	path := flagx.ConfigFilePath(os.Args[1:])
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.Env, c.Env)
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.CookieDomain, c.CookieDomain)
	setString(&config.RedisAddr, c.RedisAddr)

	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.StrictTokenVersion != nil {
		config.StrictTokenVersion = *c.StrictTokenVersion
	}
	if c.Argon2Memory != 0 {
		config.Argon2Memory = c.Argon2Memory
	}
	if c.Argon2Time != 0 {
		config.Argon2Time = c.Argon2Time
	}
	if c.Argon2Parallelism != 0 {
		config.Argon2Parallelism = c.Argon2Parallelism
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

package config

import (
	"flag"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/eventcheckin/internal/flagx"
	"github.com/dmitrijs2005/eventcheckin/internal/timex"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string     HTTP bind address (e.g. ":5100")
//	-g string     gRPC bind address (e.g. ":50051")
//	-d string     PostgreSQL DSN
//	-s string     access token HMAC secret
//	-rs string    refresh token HMAC secret
//	-t duration   access token validity ("15m", "1d")
//	-r duration   refresh token validity ("7d")
//	-e string     environment ("development" | "production")
//	-redis string Redis address for the per-user refresh lock
//	-strict-tv    re-check token version on every authenticated request
//
// os.Args is filtered with flagx.FilterArgs first, so the -c/-config flag
// consumed by the JSON loader does not trip this FlagSet.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], "a", "g", "d", "s", "rs", "t", "r", "e", "redis", "strict-tv")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&config.EndpointAddrGRPC, "g", config.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")
	fs.Func("t", "access token validity", durationFlag(&config.AccessTokenValidityDuration))
	fs.Func("r", "refresh token validity", durationFlag(&config.RefreshTokenValidityDuration))
	fs.StringVar(&config.Env, "e", config.Env, "environment")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.BoolFunc("strict-tv", "check token version on every request", func(s string) error {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		config.StrictTokenVersion = b
		return nil
	})

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

func durationFlag(dst *time.Duration) func(string) error {
	return func(s string) error {
		d, err := timex.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}
}

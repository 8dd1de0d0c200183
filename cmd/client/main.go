package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/eventcheckin/internal/buildinfo"
	"github.com/dmitrijs2005/eventcheckin/internal/client/cli"
	"github.com/dmitrijs2005/eventcheckin/internal/client/config"
)

// Usage: client [flags] [signup|signin|me|logout]
func main() {
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	args := positional(os.Args[1:])
	if len(args) == 0 {
		buildinfo.PrintBuildData(os.Stdout)
	}
	code := app.Run(ctx, args)
	stop()
	os.Exit(code)
}

// positional drops the flags config.LoadConfig consumed, leaving the command.
func positional(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) > 0 && a[0] == '-' {
			if !strings.Contains(a, "=") && i+1 < len(args) {
				i++
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

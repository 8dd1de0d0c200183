package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the command surface the REPL dispatches to. App satisfies it.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	Signin(ctx context.Context) error
	Me(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runCommand dispatches a single command. It reports false for unknown
// commands; the handler error is returned for one-shot callers.
func runCommand(ctx context.Context, a execIface, cmd string) (bool, error) {
	switch cmd {
	case "help":
		if a.isLoggedIn() {
			printlnFn("Available commands: me, logout, exit")
		} else {
			printlnFn("Available commands: signup, signin, exit")
		}
		return true, nil
	case "signup", "register":
		return true, a.Signup(ctx)
	case "signin", "login":
		return true, a.Signin(ctx)
	case "me":
		return true, a.Me(ctx)
	case "logout":
		return true, a.Logout(ctx)
	default:
		printlnFn("Unknown command:", cmd)
		return false, nil
	}
}

// runREPL reads commands line by line from scanner until EOF, "exit" or
// "quit". The prompt shows statusFn(). Handlers report their own errors, so
// the loop ignores them.
//
//	Signed out: help, signup, signin, exit
//	Signed in:  help, me, logout, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("checkin %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			_, _ = runCommand(ctx, a, cmd)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

// Package cli provides the interactive check-in command-line client.
//
// It wires configuration, the local session store and the gRPC client, then
// either runs one command (signup, signin, me, logout) or starts a REPL with
// a background connectivity watcher. Passwords are read without echo.
package cli

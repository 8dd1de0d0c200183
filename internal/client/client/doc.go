// Package client talks to the check-in auth backend over gRPC.
//
// GRPCClient holds the session token pair, attaches the access token to every
// call and, when the server reports an expired access token, rotates the pair
// with the refresh token and retries once. A refresh rejected by the server
// drops the local session. Status codes are mapped to the sentinel errors in
// errors.go so callers can match them with errors.Is.
//
// InitDatabase and RunMigrations bootstrap the CLI's local SQLite file where
// the session survives between runs.
package client

// Package migrations embeds the goose migrations for the CLI's local SQLite file.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

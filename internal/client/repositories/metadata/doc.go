// Package metadata stores small key/value records in the CLI's SQLite file.
package metadata

// Package db holds the SQL schema for the scans store, one directory per dialect.
package db

import "embed"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var Migrations embed.FS

package database

import "embed"

// EmbeddedMigrations contains all SQL migration files embedded into the
// binary, so deployments never depend on migration files being present on
// disk.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS

// Package migration runs the relational schema migrations with
// golang-migrate, sourced from an embedded filesystem.
package migration

import (
	"context"
	"io/fs"
)

// Migrator applies schema migrations to the connected database.
type Migrator interface {
	// Up applies all pending migrations found under path in migrationFS.
	// tableName is the migrate bookkeeping table.
	Up(ctx context.Context, migrationFS fs.FS, path string, tableName string) error

	// Down rolls back all applied migrations.
	Down(ctx context.Context, migrationFS fs.FS, path string, tableName string) error
}

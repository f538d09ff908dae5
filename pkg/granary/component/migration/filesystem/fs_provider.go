// Package filesystem embeds the schema migration files.
package filesystem

import (
	"embed"
	"io/fs"

	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

//go:embed resource
var rawMigrationFS embed.FS

// ProvideMigrationsFS embeds the schema migration files and returns them
// as fs.FS, rooted at the 'resource' directory.
func ProvideMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawMigrationFS, "resource")
	if err != nil {
		// This should not happen if 'resource' exists.
		logger.Fatalf("Failed to create subdirectory for migration FS: %v", err)
	}
	return subFS
}

// Package sqlite registers the GORM dialector for SQLite.
// Used by the test suite (in-memory databases) and small deployments.
package sqlite

import (
	"errors"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	dbconfig "github.com/orbitalworks/granary/pkg/granary/adapter/database/config"
	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
)

// init registers the SQLite dialector factory with the GORM adapter.
func init() {
	gormadapter.RegisterDialector("sqlite", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		// The SQLite dialector takes the file path (or ":memory:") directly.
		return sqlite.Open(cfg.Database), nil
	})
}

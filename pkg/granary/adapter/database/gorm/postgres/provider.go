// Package postgres registers the GORM dialector for PostgreSQL.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	dbconfig "github.com/orbitalworks/granary/pkg/granary/adapter/database/config"
	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
)

// init registers the PostgreSQL dialector factory with the GORM adapter.
// Importing this package is all that is needed to make `type: postgres`
// configurations connectable.
func init() {
	gormadapter.RegisterDialector("postgres", func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString generates the DSN expected by gorm.io/driver/postgres.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
}

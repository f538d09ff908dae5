// Package gorm adapts GORM connections and transactions to Granary's
// relational-store abstractions. Database-type specifics live in the
// postgres/mysql/sqlite subpackages, which register dialector factories
// on import.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	gormlib "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	dbconfig "github.com/orbitalworks/granary/pkg/granary/adapter/database/config"
	"github.com/orbitalworks/granary/pkg/granary/core/tx"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// DialectorFactory creates a gorm.Dialector from a database configuration.
type DialectorFactory func(cfg dbconfig.DatabaseConfig) (gormlib.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given database type.
// Called from the database-type subpackages' init functions.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dbType]; exists {
		logger.Warnf("Dialector for type '%s' already registered. Overwriting.", dbType)
	}
	dialectorRegistry[dbType] = factory
}

// Connection wraps one live GORM connection to the relational store.
type Connection struct {
	db  *gormlib.DB
	cfg dbconfig.DatabaseConfig
}

// Open establishes a connection using the dialector registered for the
// configured database type.
func Open(cfg dbconfig.DatabaseConfig) (*Connection, error) {
	dialectorMutex.RLock()
	factory, ok := dialectorRegistry[cfg.Type]
	dialectorMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type: %s", cfg.Type)
	}

	dialector, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dialector for '%s': %w", cfg.Type, err)
	}

	db, err := gormlib.Open(dialector, &gormlib.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access underlying sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	logger.Infof("Opened %s connection to '%s'.", cfg.Type, cfg.Database)
	return &Connection{db: db, cfg: cfg}, nil
}

// NewConnection wraps an already-open GORM handle. Used by tests that
// build an in-memory database directly.
func NewConnection(db *gormlib.DB, cfg dbconfig.DatabaseConfig) *Connection {
	return &Connection{db: db, cfg: cfg}
}

// Config returns the configuration this connection was opened with.
func (c *Connection) Config() dbconfig.DatabaseConfig {
	return c.cfg
}

// SQLDB returns the underlying *sql.DB (used by the migration runner).
func (c *Connection) SQLDB() (*sql.DB, error) {
	return c.db.DB()
}

// Close closes the connection.
func (c *Connection) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Executor resolves the GORM handle to run a statement on: the active
// transaction if one is bound to the context, the base connection
// otherwise.
func (c *Connection) Executor(ctx context.Context) *gormlib.DB {
	if t, ok := tx.FromContext(ctx); ok {
		if gt, ok := t.(*GormTx); ok {
			return gt.db.WithContext(ctx)
		}
	}
	return c.db.WithContext(ctx)
}

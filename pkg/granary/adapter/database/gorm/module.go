package gorm

import (
	"go.uber.org/fx"

	"github.com/orbitalworks/granary/pkg/granary/core/config"
)

// NewConnectionFromConfig opens the relational connection from the
// application configuration.
func NewConnectionFromConfig(cfg *config.Config) (*Connection, error) {
	return Open(cfg.Granary.Database)
}

// Module provides the relational connection and its transaction manager to Fx.
var Module = fx.Options(
	fx.Provide(NewConnectionFromConfig),
	fx.Provide(NewGormTransactionManager),
)

package migration

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/orbitalworks/granary/pkg/granary/component/migration/filesystem"
)

// MigrationsTable is the bookkeeping table golang-migrate maintains.
const MigrationsTable = "granary_schema_migrations"

// runParams collects the migration run dependencies.
type runParams struct {
	fx.In

	Migrator     Migrator
	MigrationsFS fs.FS `name:"migrationsFS"`
}

// RunMigrations applies all pending schema migrations at startup.
func RunMigrations(p runParams) error {
	return p.Migrator.Up(context.Background(), p.MigrationsFS, ".", MigrationsTable)
}

// Module provides the schema migrator and applies pending migrations when
// the application graph is built.
var Module = fx.Options(
	filesystem.Module,
	fx.Provide(NewMigrator),
	fx.Invoke(RunMigrations),
)

package sql

import "go.uber.org/fx"

// Module provides the SQL repositories and the parent resolver to Fx.
var Module = fx.Options(
	fx.Provide(NewSQLGranuleRepository),
	fx.Provide(NewSQLFileRepository),
	fx.Provide(NewSQLExecutionRepository),
	fx.Provide(NewSQLPdrRepository),
	fx.Provide(NewSQLParentResolver),
)

package main

import (
	_ "embed"
	"os"

	"go.uber.org/fx"

	// Relational dialectors. Selecting one at runtime is a matter of
	// configuration; all three register on import.
	_ "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm/mysql"
	_ "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm/postgres"
	_ "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm/sqlite"

	// gocloud drivers for the document store, search index, notification
	// topic, ingest subscription, and file object buckets. URL schemes in
	// the configuration select among them; mem* serves local development.
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	_ "gocloud.dev/docstore/awsdynamodb"
	_ "gocloud.dev/docstore/memdocstore"
	_ "gocloud.dev/pubsub/awssnssqs"
	_ "gocloud.dev/pubsub/mempubsub"

	"github.com/orbitalworks/granary/pkg/granary/adapter/consumer"
	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
	"github.com/orbitalworks/granary/pkg/granary/adapter/docstore"
	"github.com/orbitalworks/granary/pkg/granary/adapter/notification"
	"github.com/orbitalworks/granary/pkg/granary/adapter/objectstore"
	"github.com/orbitalworks/granary/pkg/granary/adapter/searchindex"
	"github.com/orbitalworks/granary/pkg/granary/component/migration"
	"github.com/orbitalworks/granary/pkg/granary/core/application/usecase"
	"github.com/orbitalworks/granary/pkg/granary/core/config"
	"github.com/orbitalworks/granary/pkg/granary/core/write"
	infraMetrics "github.com/orbitalworks/granary/pkg/granary/infrastructure/metrics"
	"github.com/orbitalworks/granary/pkg/granary/infrastructure/repository/sql"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// embeddedConfig embeds the application's YAML configuration file,
// loaded once at startup with environment-variable expansion.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// main assembles the application graph and runs it until a termination
// signal arrives. Fx handles SIGINT/SIGTERM itself.
func main() {
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app := fx.New(
		fx.Supply(
			config.EmbeddedConfig(embeddedConfig),
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),

		config.Module,
		gormadapter.Module,
		migration.Module,
		sql.Module,
		docstore.Module,
		searchindex.Module,
		notification.Module,
		objectstore.Module,
		infraMetrics.Module,
		write.Module,
		usecase.Module,
		consumer.Module,
	)

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/granary/pkg/granary/core/config"
)

func TestNewConfigProvider_ExpandsEnvironment(t *testing.T) {
	t.Setenv("GRANARY_DB_HOST", "db.internal")
	t.Setenv("GRANARY_DB_PASSWORD", "s3cret")
	t.Setenv("GRANARY_DOCSTORE_GRANULES_URL", "mem://granules/_id")

	raw := []byte(`
granary:
  database:
    host: ${GRANARY_DB_HOST}
    user: granary
    password: ${GRANARY_DB_PASSWORD}
    database: granary
  document_store:
    granules_url: ${GRANARY_DOCSTORE_GRANULES_URL}
  write:
    concurrency: 4
`)
	cfg, err := config.NewConfigProvider(config.ConfigParams{
		EmbeddedConfig: config.EmbeddedConfig(raw),
		EnvFilePath:    "does-not-exist.env",
	})
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Granary.Database.Host)
	assert.Equal(t, "s3cret", cfg.Granary.Database.Password)
	assert.Equal(t, "mem://granules/_id", cfg.Granary.DocumentStore.GranulesURL)
	assert.Equal(t, 4, cfg.Granary.Write.Concurrency)

	// Defaults survive for settings the document does not override.
	assert.Equal(t, "postgres", cfg.Granary.Database.Type)
	assert.Equal(t, 5432, cfg.Granary.Database.Port)
	assert.Equal(t, "disable", cfg.Granary.Database.Sslmode)
	assert.Equal(t, "INFO", cfg.Granary.System.Logging.Level)
	assert.Empty(t, cfg.Granary.Ingest.SubscriptionURL)
}

func TestNewConfigProvider_UnsetVariableExpandsEmpty(t *testing.T) {
	raw := []byte(`
granary:
  notification:
    topic_url: ${GRANARY_UNSET_TOPIC_URL}
`)
	cfg, err := config.NewConfigProvider(config.ConfigParams{
		EmbeddedConfig: config.EmbeddedConfig(raw),
	})
	require.NoError(t, err)
	assert.Empty(t, cfg.Granary.Notification.TopicURL)
}

func TestNewConfigProvider_MalformedYaml(t *testing.T) {
	_, err := config.NewConfigProvider(config.ConfigParams{
		EmbeddedConfig: config.EmbeddedConfig([]byte("granary: [")),
	})
	assert.Error(t, err)
}

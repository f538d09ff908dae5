// Package config provides Granary's application configuration: one yaml
// document with environment-variable expansion, loaded once at startup and
// passed explicitly into constructors. There is no ambient global state
// beyond the process log level.
package config

import (
	dbconfig "github.com/orbitalworks/granary/pkg/granary/adapter/database/config"
)

// EmbeddedConfig holds the raw bytes of the configuration file, typically
// embedded into the binary and passed in from main.
type EmbeddedConfig []byte

// SystemConfig holds process-level settings.
type SystemConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR, FATAL.
	Level string `yaml:"level"`
}

// DocumentStoreConfig holds the docstore collection URLs of the legacy
// document store, one per record type (the store is natural-key
// addressed). URLs follow the gocloud.dev docstore scheme, e.g.
// "dynamodb://granules-table?partition_key=_id" or "mem://granules/_id".
type DocumentStoreConfig struct {
	GranulesURL   string `yaml:"granules_url"`
	ExecutionsURL string `yaml:"executions_url"`
	PdrsURL       string `yaml:"pdrs_url"`
}

// SearchIndexConfig holds the docstore collection URLs of the denormalized
// search index, one read-model collection per record type.
type SearchIndexConfig struct {
	GranulesURL   string `yaml:"granules_url"`
	ExecutionsURL string `yaml:"executions_url"`
	PdrsURL       string `yaml:"pdrs_url"`
}

// NotificationConfig holds the pubsub topic the change notifications are
// published to, e.g. "awssns:///arn:aws:sns:..." or "mem://records".
type NotificationConfig struct {
	TopicURL string `yaml:"topic_url"`
}

// ObjectStoreConfig holds the blob bucket URL backing granule file
// objects, e.g. "s3://protected-bucket" or "mem://".
type ObjectStoreConfig struct {
	BucketURL string `yaml:"bucket_url"`
}

// IngestConfig holds the pubsub subscription the inbound pipeline
// messages are consumed from, e.g. "awssqs://..." or "mem://ingest".
// Empty disables the consumer (library-only deployments).
type IngestConfig struct {
	SubscriptionURL string `yaml:"subscription_url"`
}

// WriteConfig tunes the write path.
type WriteConfig struct {
	// Concurrency bounds the batch dispatcher's worker pool. Zero means
	// one worker per record.
	Concurrency int `yaml:"concurrency"`
}

// GranaryConfig is the root of the application's own settings.
type GranaryConfig struct {
	System        SystemConfig            `yaml:"system"`
	Database      dbconfig.DatabaseConfig `yaml:"database"`
	DocumentStore DocumentStoreConfig     `yaml:"document_store"`
	SearchIndex   SearchIndexConfig       `yaml:"search_index"`
	Notification  NotificationConfig      `yaml:"notification"`
	ObjectStore   ObjectStoreConfig       `yaml:"object_store"`
	Ingest        IngestConfig            `yaml:"ingest"`
	Write         WriteConfig             `yaml:"write"`
}

// Config is the top-level configuration document.
type Config struct {
	Granary GranaryConfig `yaml:"granary"`
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Granary: GranaryConfig{
			System: SystemConfig{
				Logging: LoggingConfig{Level: "INFO"},
			},
			Database: dbconfig.DatabaseConfig{
				Type:    "postgres",
				Host:    "localhost",
				Port:    5432,
				Sslmode: "disable",
			},
			Write: WriteConfig{Concurrency: 10},
		},
	}
}

package config

import (
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from the embedded yaml and the process
// environment. Called once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expander := NewOsEnvironmentExpander()
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewWriteError(moduleName, "failed to expand environment variables in config", err)
	}

	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, exception.NewWriteError(moduleName, "failed to unmarshal embedded config", err)
	}

	if cfg.Granary.System.Logging.Level != "" {
		logger.SetLogLevel(cfg.Granary.System.Logging.Level)
	}
	return cfg, nil
}

// NewConfigProvider is the Fx provider for *Config.
func NewConfigProvider(p ConfigParams) (*Config, error) {
	return loadConfig(p.EnvFilePath, p.EmbeddedConfig)
}

// Package config defines the relational database connection configuration.
package config

// DatabaseConfig holds the connection settings for the authoritative
// relational store. Values come from the application configuration file
// (with environment expansion), never from ambient globals.
type DatabaseConfig struct {
	Type     string `yaml:"type" mapstructure:"type"`         // "postgres", "mysql" or "sqlite"
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"` // database name, or file path for sqlite
	Sslmode  string `yaml:"sslmode" mapstructure:"sslmode"`

	// MaxOpenConns bounds the pool; zero keeps the driver default.
	MaxOpenConns int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
}

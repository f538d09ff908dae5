package config

import (
	"os"
)

// EnvironmentExpander expands environment-variable placeholders within a
// configuration byte slice before it is parsed.
type EnvironmentExpander interface {
	// Expand replaces ${VAR} or $VAR placeholders in input and returns the
	// expanded bytes.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander implements EnvironmentExpander with os.ExpandEnv.
// Unset variables expand to the empty string.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates a new OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand uses os.ExpandEnv on the input. os.ExpandEnv cannot fail, so the
// returned error is always nil.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.ExpandEnv(string(input))), nil
}

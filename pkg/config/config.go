package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Environment names the runtime mode the process was started in.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// IsDevelopment reports whether destructive developer tooling may run.
// Both "development" and the short "dev" form are accepted.
func (e Environment) IsDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(string(e))) {
	case "development", "dev":
		return true
	default:
		return false
	}
}

func (e Environment) String() string {
	return strings.TrimSpace(string(e))
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

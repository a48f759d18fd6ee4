// Package config wraps environment parsing shared by every command.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces operator-facing variables owned by this project.
const EnvPrefix = "AGI_COSMIC_"

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvPrefixed loads configuration whose tags omit the project prefix.
//
// Tags such as `env:"HTTP_ADDR"` resolve to AGI_COSMIC_HTTP_ADDR. Fields that
// must read third-party names (OPENAI_API_KEY) belong in an unprefixed struct.
func ParseEnvPrefixed(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

package ports

import "go.trai.ch/kiln/internal/core/domain"

// ConfigLoader loads the engine configuration and project definition.
type ConfigLoader interface {
	// Load reads the configuration from the given working directory.
	Load(cwd string) (*domain.Config, error)
}

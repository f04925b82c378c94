package app

import (
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Components bundles the fully wired application surface the CLI needs.
type Components struct {
	App    *App
	Config *domain.Config
	Logger ports.Logger
}

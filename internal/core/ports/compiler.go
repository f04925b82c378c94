package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// Compiler is the external compile collaborator. The engine treats it as an
// opaque, potentially expensive, pure function of the unit's content and
// its dependencies' exported interfaces.
//
//go:generate go run go.uber.org/mock/mockgen -source=compiler.go -destination=mocks/mock_compiler.go -package=mocks
type Compiler interface {
	// Compile turns one source unit into an artifact.
	Compile(ctx context.Context, unit *domain.SourceUnit) (*domain.Artifact, error)
}

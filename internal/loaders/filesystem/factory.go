package filesystem

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// Ensure Factory implements the interface.
var _ driven.LoaderFactory = (*Factory)(nil)

// Factory creates filesystem loaders sharing one filter configuration.
type Factory struct {
	include []string
	exclude []string
}

// NewFactory returns a factory whose loaders apply the given include
// and exclude patterns. Patterns are validated here; the source root
// varies per Create call.
func NewFactory(include, exclude []string) (*Factory, error) {
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid include pattern %q", domain.ErrInvalidInput, pattern)
		}
	}
	for _, pattern := range exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: invalid exclude pattern %q", domain.ErrInvalidInput, pattern)
		}
	}

	return &Factory{include: include, exclude: exclude}, nil
}

// Create returns a loader rooted at the given directory. The root is
// resolved to an absolute path so relative document identifiers stay
// stable regardless of working directory.
func (f *Factory) Create(root string) (driven.Loader, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("%w: source root is empty", domain.ErrInvalidInput)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	return New(abs, f.include, f.exclude), nil
}

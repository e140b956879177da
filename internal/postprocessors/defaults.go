package postprocessors

import (
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - size (int): Target characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters between chunks (default: 200)
//   - min_size (int): Smallest chunk worth keeping (default: 50)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	ccfg := domain.DefaultChunkingConfig()

	if _, ok := cfg["size"]; ok {
		ccfg.Size = getIntFromConfig(cfg, "size")
	}
	if _, ok := cfg["overlap"]; ok {
		ccfg.Overlap = getIntFromConfig(cfg, "overlap")
	}
	if _, ok := cfg["min_size"]; ok {
		ccfg.MinSize = getIntFromConfig(cfg, "min_size")
	}

	return chunker.New(ccfg)
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) int {
	val, ok := cfg[key]
	if !ok {
		return 0
	}

	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

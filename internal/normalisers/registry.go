package normalisers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/normalisers/docx"
	"github.com/custodia-labs/quarry/internal/normalisers/html"
	"github.com/custodia-labs/quarry/internal/normalisers/markdown"
	"github.com/custodia-labs/quarry/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry dispatches raw documents to normalisers by MIME type.
// For each MIME type the highest-priority normaliser wins.
// Register is not safe to call concurrently with Normalise; all
// normalisers must be registered before indexing starts.
type Registry struct {
	byMIME map[string][]driven.Normaliser
}

// NewRegistry creates an empty normaliser registry.
func NewRegistry() *Registry {
	return &Registry{
		byMIME: make(map[string][]driven.Normaliser),
	}
}

// DefaultRegistry creates a registry with all shipped normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	return r
}

// Register adds a normaliser for each MIME type it supports.
func (r *Registry) Register(normaliser driven.Normaliser) {
	for _, mimeType := range normaliser.SupportedMIMETypes() {
		key := canonicalMIME(mimeType)
		r.byMIME[key] = append(r.byMIME[key], normaliser)
		sort.SliceStable(r.byMIME[key], func(i, j int) bool {
			return r.byMIME[key][i].Priority() > r.byMIME[key][j].Priority()
		})
	}
}

// Normalise transforms a raw document using the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	key := canonicalMIME(raw.MIMEType)
	candidates := r.byMIME[key]
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no normaliser for MIME type %q", domain.ErrUnsupportedType, key)
	}

	return candidates[0].Normalise(ctx, raw)
}

// SupportedMIMETypes returns all MIME types that can be normalised,
// sorted alphabetically.
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.byMIME))
	for mimeType := range r.byMIME {
		types = append(types, mimeType)
	}
	sort.Strings(types)
	return types
}

// canonicalMIME lowercases a MIME type and strips parameters such as
// "; charset=utf-8".
func canonicalMIME(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

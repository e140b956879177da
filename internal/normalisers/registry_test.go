package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

// mockNormaliser records dispatch for registry tests.
type mockNormaliser struct {
	mimeTypes []string
	priority  int
	label     string
}

func (m *mockNormaliser) SupportedMIMETypes() []string { return m.mimeTypes }
func (m *mockNormaliser) Priority() int                { return m.priority }

func (m *mockNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{
		Document: domain.Document{
			ID:       raw.Path,
			Content:  string(raw.Content),
			Metadata: map[string]any{"handled_by": m.label},
		},
	}, nil
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r)
	assert.Empty(t, r.SupportedMIMETypes())
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	types := r.SupportedMIMETypes()
	assert.Contains(t, types, "text/plain")
	assert.Contains(t, types, "text/markdown")
	assert.Contains(t, types, "text/html")
	assert.Contains(t, types, "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

func TestRegistry_Normalise_Dispatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{mimeTypes: []string{"text/plain"}, priority: 5, label: "plain"})
	r.Register(&mockNormaliser{mimeTypes: []string{"text/markdown"}, priority: 50, label: "markdown"})

	raw := &domain.RawDocument{
		Path:     "notes/readme.md",
		MIMEType: "text/markdown",
		Content:  []byte("# Hello"),
	}

	result, err := r.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "markdown", result.Document.Metadata["handled_by"])
	assert.Equal(t, raw.Path, result.Document.ID)
}

func TestRegistry_Normalise_HighestPriorityWins(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{mimeTypes: []string{"text/html"}, priority: 5, label: "fallback"})
	r.Register(&mockNormaliser{mimeTypes: []string{"text/html"}, priority: 50, label: "specific"})

	raw := &domain.RawDocument{
		Path:     "site/page.html",
		MIMEType: "text/html",
		Content:  []byte("<p>hi</p>"),
	}

	result, err := r.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "specific", result.Document.Metadata["handled_by"])
}

func TestRegistry_Normalise_RegistrationOrderIrrelevant(t *testing.T) {
	// Same as above but registered high-priority first.
	r := NewRegistry()
	r.Register(&mockNormaliser{mimeTypes: []string{"text/html"}, priority: 50, label: "specific"})
	r.Register(&mockNormaliser{mimeTypes: []string{"text/html"}, priority: 5, label: "fallback"})

	raw := &domain.RawDocument{
		Path:     "site/page.html",
		MIMEType: "text/html",
		Content:  []byte("<p>hi</p>"),
	}

	result, err := r.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "specific", result.Document.Metadata["handled_by"])
}

func TestRegistry_Normalise_StripsMIMEParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{mimeTypes: []string{"text/plain"}, priority: 5, label: "plain"})

	raw := &domain.RawDocument{
		Path:     "notes/a.txt",
		MIMEType: "text/plain; charset=utf-8",
		Content:  []byte("hello"),
	}

	result, err := r.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "plain", result.Document.Metadata["handled_by"])
}

func TestRegistry_Normalise_UnsupportedType(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{mimeTypes: []string{"text/plain"}, priority: 5, label: "plain"})

	raw := &domain.RawDocument{
		Path:     "images/photo.png",
		MIMEType: "image/png",
		Content:  []byte{0x89, 0x50},
	}

	result, err := r.Normalise(context.Background(), raw)
	assert.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	assert.Contains(t, err.Error(), "image/png")
	assert.Nil(t, result)
}

func TestRegistry_Normalise_NilDocument(t *testing.T) {
	r := NewRegistry()

	result, err := r.Normalise(context.Background(), nil)
	assert.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestDefaultRegistry_HTMLDispatchesToHTMLNormaliser(t *testing.T) {
	// Plaintext lists text/html as a fallback; the html normaliser
	// must win on priority.
	r := DefaultRegistry()

	raw := &domain.RawDocument{
		Path:     "site/page.html",
		MIMEType: "text/html",
		Content:  []byte("<html><body><p>Hello</p></body></html>"),
	}

	result, err := r.Normalise(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "html", result.Document.Metadata["format"])
	assert.Equal(t, "Hello", result.Document.Content)
}

func TestRegistry_SupportedMIMETypes_Sorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{mimeTypes: []string{"text/plain", "application/json"}, priority: 5, label: "a"})
	r.Register(&mockNormaliser{mimeTypes: []string{"text/markdown"}, priority: 50, label: "b"})

	types := r.SupportedMIMETypes()
	assert.Equal(t, []string{"application/json", "text/markdown", "text/plain"}, types)
}

func TestRegistry_SupportedMIMETypes_Deduplicated(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNormaliser{mimeTypes: []string{"text/html"}, priority: 5, label: "a"})
	r.Register(&mockNormaliser{mimeTypes: []string{"text/html"}, priority: 50, label: "b"})

	types := r.SupportedMIMETypes()
	assert.Equal(t, []string{"text/html"}, types)
}

func TestRegistryInterfaceCompliance(t *testing.T) {
	var _ driven.NormaliserRegistry = (*Registry)(nil)
}

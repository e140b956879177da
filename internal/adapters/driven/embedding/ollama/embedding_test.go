package ollama

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/ports/driven"
)

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{})

	require.NotNil(t, svc)
	assert.Equal(t, DefaultBaseURL, svc.baseURL)
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
	assert.Equal(t, DefaultMaxInputLength, svc.MaxInputLength())
	assert.Equal(t, DefaultTimeout, svc.client.Timeout)
}

func TestNewEmbeddingService_CustomConfig(t *testing.T) {
	svc := NewEmbeddingService(Config{
		BaseURL:        "http://embedding-host:11434",
		Model:          "all-minilm",
		Timeout:        5 * time.Second,
		Dimensions:     384,
		MaxInputLength: 2048,
	})

	assert.Equal(t, "http://embedding-host:11434", svc.baseURL)
	assert.Equal(t, "all-minilm", svc.ModelName())
	assert.Equal(t, 384, svc.Dimensions())
	assert.Equal(t, 2048, svc.MaxInputLength())
	assert.Equal(t, 5*time.Second, svc.client.Timeout)
}

func TestEmbeddingService_Close(t *testing.T) {
	svc := NewEmbeddingService(Config{})

	assert.NoError(t, svc.Close())
}

func TestEmbeddingServiceInterfaceCompliance(t *testing.T) {
	var _ driven.EmbeddingService = (*EmbeddingService)(nil)
}

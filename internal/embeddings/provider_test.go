package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/corpusd/internal/config"
)

func TestDetectDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"BAAI/bge-small-en-v1.5", 384},
		{"BAAI/bge-small-en", 384},
		{"BAAI/bge-base-en-v1.5", 768},
		{"BAAI/bge-small-zh-v1.5", 512},
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"fast-bge-small-en-v1.5", 384},
		{"fast-bge-base-en", 768},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"custom-large-model", 1024},
		{"custom-base-model", 768},
		{"totally-unknown", 384},
		{"", 384},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectDimension(tt.model))
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	cfg := config.EmbeddingsConfig{Provider: "cohere"}

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "cohere")
}

func TestNew_TEIProvider(t *testing.T) {
	cfg := config.EmbeddingsConfig{
		Provider: "tei",
		Model:    "BAAI/bge-small-en-v1.5",
		BaseURL:  "http://localhost:8080",
	}

	provider, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	assert.IsType(t, &TEIProvider{}, provider)
	assert.Equal(t, 384, provider.Dimension())
}

func TestNew_TEIProviderRequiresBaseURL(t *testing.T) {
	cfg := config.EmbeddingsConfig{Provider: "tei", Model: "BAAI/bge-small-en-v1.5"}

	_, err := New(context.Background(), cfg, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_OpenAIProvider(t *testing.T) {
	cfg := config.EmbeddingsConfig{
		Provider: "openai",
		Model:    "text-embedding-3-small",
		BaseURL:  "https://api.openai.com/v1",
	}

	provider, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	assert.IsType(t, &OpenAIProvider{}, provider)
	assert.Equal(t, 1536, provider.Dimension())
}

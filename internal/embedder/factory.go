package embedder

import (
	"context"
	"fmt"

	"github.com/GomuGomuu/ope-ope/internal/config"
	"github.com/GomuGomuu/ope-ope/internal/log"
)

// Factory creates embedders based on configuration
type Factory struct {
	config config.EmbeddingConfig
}

// NewFactory creates a new embedder factory
func NewFactory(cfg config.EmbeddingConfig) *Factory {
	return &Factory{config: cfg}
}

// Create creates the configured embedder. Providers that need a network probe
// to learn their dimensions perform it here.
func (f *Factory) Create(ctx context.Context) (Embedder, error) {
	switch f.config.Provider {
	case config.ProviderOpenAI:
		log.InfoLogger.Info().Msgf("🌐 Initializing OpenAI embedder with model: %s", f.config.OpenAI.Model)
		return NewOpenAIEmbedder(f.config.OpenAI, f.config.Dimensions), nil
	case config.ProviderLocal:
		log.InfoLogger.Info().Msgf("🏠 Initializing local embedder (%s at %s)", f.config.Local.ServerType, f.config.Local.ServerURL)
		e, err := NewLocalEmbedder(ctx, f.config.Local, f.config.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to create local embedder: %w", err)
		}
		return e, nil
	case config.ProviderHuggingFace:
		log.InfoLogger.Info().Msgf("🤗 Initializing HuggingFace embedder with model: %s", f.config.HuggingFace.ModelID)
		e, err := NewHuggingFaceEmbedder(ctx, f.config.HuggingFace, f.config.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to create HuggingFace embedder: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", f.config.Provider)
	}
}

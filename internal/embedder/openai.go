package embedder

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"github.com/GomuGomuu/ope-ope/internal/config"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel openai.EmbeddingModel = "text-embedding-3-small"

// OpenAIEmbedder creates embeddings through the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder creates an OpenAI embedder. dimensions of 0 uses the model's known size.
func NewOpenAIEmbedder(cfg config.OpenAIConfig, dimensions int) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := DefaultOpenAIModel
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}
	if dimensions <= 0 {
		dimensions = openAIDimensions(string(model))
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: dimensions,
	}
}

// Embed creates a vector embedding for the given text using the configured model.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, unavailableCause(err, "openai model %s", e.model)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, unavailable("openai model %s returned no embedding", e.model)
	}
	embedding := resp.Data[0].Embedding
	if len(embedding) != e.dimensions {
		return nil, unavailable("dimension mismatch: expected %d, got %d", e.dimensions, len(embedding))
	}
	return embedding, nil
}

// Dimensions returns the dimensions for the configured OpenAI model.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID returns the provider-qualified model name.
func (e *OpenAIEmbedder) ModelID() string {
	return "openai:" + string(e.model)
}

func openAIDimensions(model string) int {
	switch model {
	case "text-embedding-3-small":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002":
		return 1536
	default:
		// Default fallback for unknown models
		return 1536
	}
}

package embedder

import (
	"context"
	"strings"

	"github.com/hupe1980/go-huggingface"

	"github.com/GomuGomuu/ope-ope/internal/config"
	"github.com/GomuGomuu/ope-ope/internal/log"
)

type featureExtractor func(ctx context.Context, req *huggingface.FeatureExtractionRequest) ([][]float32, error)

// HuggingFaceEmbedder implements Embedder using the HuggingFace feature-extraction API.
type HuggingFaceEmbedder struct {
	config     config.HuggingFaceConfig
	extract    featureExtractor
	dimensions int
}

// NewHuggingFaceEmbedder creates a HuggingFace embedder. When dimensions is 0 it is
// detected with a probe request, which also proves the model can be reached.
func NewHuggingFaceEmbedder(ctx context.Context, cfg config.HuggingFaceConfig, dimensions int) (*HuggingFaceEmbedder, error) {
	if cfg.Token == "" {
		log.InfoLogger.Warn().Msg("⚠️  No HuggingFace API token found. Some models may require authentication.")
	}

	client := huggingface.NewInferenceClient(cfg.Token)
	client.SetModel(cfg.ModelID)

	extract := func(ctx context.Context, req *huggingface.FeatureExtractionRequest) ([][]float32, error) {
		resp, err := client.FeatureExtractionWithAutomaticReduction(ctx, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}
	return newHuggingFaceEmbedder(ctx, cfg, dimensions, extract)
}

func newHuggingFaceEmbedder(ctx context.Context, cfg config.HuggingFaceConfig, dimensions int, extract featureExtractor) (*HuggingFaceEmbedder, error) {
	e := &HuggingFaceEmbedder{
		config:     cfg,
		extract:    extract,
		dimensions: dimensions,
	}
	if dimensions <= 0 {
		detected, err := e.detectDimensions(ctx)
		if err != nil {
			return nil, err
		}
		e.dimensions = detected
	}
	log.InfoLogger.Info().Msgf("🤗 HuggingFace embedder ready: %s (%d dimensions)", cfg.ModelID, e.dimensions)
	return e, nil
}

// Embed creates a vector embedding for the given text using the HuggingFace model.
func (e *HuggingFaceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	embedding, err := e.embedOne(ctx, truncate(text, e.config.MaxLength))
	if err != nil {
		return nil, err
	}
	if len(embedding) != e.dimensions {
		return nil, unavailable("dimension mismatch: expected %d, got %d", e.dimensions, len(embedding))
	}
	return embedding, nil
}

// Dimensions returns the embedding dimensions.
func (e *HuggingFaceEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID returns the provider-qualified model id.
func (e *HuggingFaceEmbedder) ModelID() string {
	return "huggingface:" + e.config.ModelID
}

func (e *HuggingFaceEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	req := &huggingface.FeatureExtractionRequest{
		Inputs: []string{text},
		Options: huggingface.Options{
			WaitForModel: huggingface.PTR(true),
			UseCache:     huggingface.PTR(true),
		},
	}
	resp, err := e.extract(ctx, req)
	if err != nil {
		// Check for authentication errors and provide helpful guidance
		msg := err.Error()
		if strings.Contains(msg, "Invalid username or password") ||
			strings.Contains(msg, "unauthorized") ||
			strings.Contains(msg, "authentication") {
			return nil, unavailableCause(err, "authentication failed for model %s; set HUGGINGFACEHUB_API_TOKEN", e.config.ModelID)
		}
		return nil, unavailableCause(err, "huggingface model %s", e.config.ModelID)
	}
	if len(resp) == 0 || len(resp[0]) == 0 {
		return nil, unavailable("huggingface model %s returned no embedding", e.config.ModelID)
	}
	return resp[0], nil
}

// detectDimensions auto-detects the embedding dimensions by making a test request.
func (e *HuggingFaceEmbedder) detectDimensions(ctx context.Context) (int, error) {
	log.InfoLogger.Info().Msgf("🔍 Auto-detecting embedding dimensions for model: %s", e.config.ModelID)
	embedding, err := e.embedOne(ctx, "Hello world")
	if err != nil {
		return 0, err
	}
	return len(embedding), nil
}

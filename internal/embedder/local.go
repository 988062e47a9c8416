package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/GomuGomuu/ope-ope/internal/config"
	"github.com/GomuGomuu/ope-ope/internal/log"
)

// LocalEmbedder implements Embedder against a self-hosted embedding server
// (Text Embeddings Inference, Ollama, or an OpenAI-like custom server).
type LocalEmbedder struct {
	config     config.LocalConfig
	httpClient *http.Client
	dimensions int
}

// NewLocalEmbedder creates a local embedder. When dimensions is 0 it is detected
// with a probe request.
func NewLocalEmbedder(ctx context.Context, cfg config.LocalConfig, dimensions int) (*LocalEmbedder, error) {
	e := &LocalEmbedder{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		dimensions: dimensions,
	}

	if dimensions <= 0 {
		log.InfoLogger.Info().Msgf("🔍 Auto-detecting embedding dimensions for local server at %s", cfg.ServerURL)
		embedding, err := e.embedSingle(ctx, "test")
		if err != nil {
			return nil, fmt.Errorf("failed to detect embedding dimensions: %w", err)
		}
		e.dimensions = len(embedding)
	}

	log.InfoLogger.Info().Msgf("🤖 Local embedder initialized with %d dimensions", e.dimensions)
	return e, nil
}

// Embed creates a vector embedding for the given text using the local server.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	embedding, err := e.embedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(embedding) != e.dimensions {
		return nil, unavailable("dimension mismatch: expected %d, got %d", e.dimensions, len(embedding))
	}
	return embedding, nil
}

// Dimensions returns the embedding dimensions.
func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID identifies the server type and model. The server URL stands in for the
// model when the server does not name one.
func (e *LocalEmbedder) ModelID() string {
	model := e.config.ModelName
	if model == "" {
		model = e.config.ServerURL
	}
	return "local:" + e.config.ServerType + ":" + model
}

func (e *LocalEmbedder) embedSingle(ctx context.Context, text string) ([]float32, error) {
	requestBody, err := e.createRequestBody([]string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.getEmbedEndpoint(), bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, unavailableCause(err, "request to local embedding server")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, unavailable("local embedding server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	embeddings, err := e.parseResponse(resp.Body)
	if err != nil {
		return nil, unavailableCause(err, "failed to parse embedding response")
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, unavailable("received empty embedding from local server")
	}
	return embeddings[0], nil
}

// getEmbedEndpoint returns the embedding endpoint URL based on server type
func (e *LocalEmbedder) getEmbedEndpoint() string {
	baseURL := strings.TrimRight(e.config.ServerURL, "/")

	switch e.config.ServerType {
	case "ollama":
		return baseURL + "/api/embeddings"
	case "custom":
		return baseURL + "/embeddings"
	default:
		return baseURL + "/embed"
	}
}

// createRequestBody creates the HTTP request body based on server type
func (e *LocalEmbedder) createRequestBody(texts []string) ([]byte, error) {
	switch e.config.ServerType {
	case "ollama":
		if len(texts) != 1 {
			return nil, fmt.Errorf("ollama only supports single text embedding")
		}
		return json.Marshal(map[string]interface{}{
			"model":  e.config.ModelName,
			"prompt": texts[0],
		})
	case "custom":
		request := map[string]interface{}{
			"input": texts,
		}
		if e.config.ModelName != "" {
			request["model"] = e.config.ModelName
		}
		return json.Marshal(request)
	default:
		return json.Marshal(map[string]interface{}{
			"inputs": texts,
		})
	}
}

// parseResponse parses the embedding response based on server type
func (e *LocalEmbedder) parseResponse(body io.Reader) ([][]float32, error) {
	switch e.config.ServerType {
	case "ollama":
		var response struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(body).Decode(&response); err != nil {
			return nil, fmt.Errorf("failed to decode Ollama response: %w", err)
		}
		return [][]float32{response.Embedding}, nil
	case "custom":
		return parseCustomResponse(body)
	default:
		var embeddings [][]float32
		if err := json.NewDecoder(body).Decode(&embeddings); err != nil {
			return nil, fmt.Errorf("failed to decode TEI response: %w", err)
		}
		return embeddings, nil
	}
}

// parseCustomResponse parses custom server response (OpenAI-like format)
func parseCustomResponse(body io.Reader) ([][]float32, error) {
	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Embeddings [][]float32 `json:"embeddings"` // Alternative format
	}
	if err := json.NewDecoder(body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode custom response: %w", err)
	}

	if len(response.Data) > 0 {
		embeddings := make([][]float32, len(response.Data))
		for i, item := range response.Data {
			embeddings[i] = item.Embedding
		}
		return embeddings, nil
	}
	if len(response.Embeddings) > 0 {
		return response.Embeddings, nil
	}
	return nil, fmt.Errorf("no embeddings found in custom response")
}

package embedder

import (
	"context"
	"errors"
	"fmt"

	"github.com/GomuGomuu/ope-ope/internal/log"
)

// ErrUnavailable is wrapped by every error caused by the embedding backend failing to
// load or answer. It is fatal to the operation that needed the embedding.
var ErrUnavailable = errors.New("embedding unavailable")

// ErrEmptyText is returned when asked to embed an empty string.
var ErrEmptyText = errors.New("text cannot be empty")

// Embedder maps text to a fixed-dimension vector.
// For a given ModelID the output must be deterministic; cached vectors are only
// reused while ModelID stays the same.
type Embedder interface {
	// Embed takes a string of text and returns its vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the length of every vector produced.
	Dimensions() int
	// ModelID identifies the backing model and version.
	ModelID() string
}

// Validate tests the embedder connection and checks the reported dimensions.
func Validate(ctx context.Context, e Embedder) error {
	log.InfoLogger.Info().Msg("🔍 Validating embedder connection...")

	// Test with a simple embedding
	embedding, err := e.Embed(ctx, "Hello world")
	if err != nil {
		return fmt.Errorf("failed to create test embedding: %w", err)
	}

	expectedDimensions := e.Dimensions()
	actualDimensions := len(embedding)
	if actualDimensions != expectedDimensions {
		return fmt.Errorf("%w: dimension mismatch: expected %d, got %d", ErrUnavailable, expectedDimensions, actualDimensions)
	}

	log.InfoLogger.Info().Msgf("✅ Embedder connection validated successfully (%d dimensions)", actualDimensions)
	return nil
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}

// unavailableCause is unavailable with the backend error kept in the chain, so callers
// can still match context.DeadlineExceeded or context.Canceled.
func unavailableCause(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, fmt.Sprintf(format, args...), err)
}

// truncate cuts text to at most max runes.
func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	log.InfoLogger.Debug().Msgf("⚠️  Truncating text from %d to %d characters", len(runes), max)
	return string(runes[:max])
}

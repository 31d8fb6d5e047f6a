// Package embedding provides text embedding via ONNX, with caching and a
// lazily-initialized process-wide provider.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding provider cannot be initialized.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedder produces fixed-length dense vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

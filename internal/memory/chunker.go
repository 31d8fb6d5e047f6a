// Package memory provides the document memory service: chunked ingestion,
// vector search with per-user isolation, and document lifecycle.
package memory

import (
	"errors"
	"fmt"

	"github.com/hyperjump/omoide/internal/models"
)

// ErrInvalidChunking is returned when chunk overlap is not smaller than chunk
// size; such a window would never advance.
var ErrInvalidChunking = errors.New("chunk overlap must be smaller than chunk size")

// Chunker splits text into overlapping byte windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap in
// bytes. overlap must be smaller than size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: size %d, overlap %d", ErrInvalidChunking, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into windows of the configured size, each starting
// size-overlap bytes after the previous one. Non-empty text produces at least
// one chunk; empty text produces none. The final window may be shorter than
// size, and can be fully contained in the previous one.
func (c *Chunker) Chunk(docID, text string) []*models.Chunk {
	if len(text) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var chunks []*models.Chunk
	index := 0
	for start := 0; start < len(text); start += step {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, &models.Chunk{
			ID:            fmt.Sprintf("%s_%d", docID, index),
			DocumentID:    docID,
			Content:       text[start:end],
			ChunkIndex:    index,
			StartPosition: start,
			EndPosition:   end,
		})
		index++
	}
	return chunks
}

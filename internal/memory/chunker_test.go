package memory

import (
	"errors"
	"strings"
	"testing"
)

func TestNewChunker_Validation(t *testing.T) {
	if _, err := NewChunker(0, 0); err == nil {
		t.Error("zero size should fail")
	}
	if _, err := NewChunker(10, -1); err == nil {
		t.Error("negative overlap should fail")
	}
	if _, err := NewChunker(10, 10); !errors.Is(err, ErrInvalidChunking) {
		t.Errorf("overlap == size: got %v, want ErrInvalidChunking", err)
	}
	if _, err := NewChunker(10, 20); !errors.Is(err, ErrInvalidChunking) {
		t.Errorf("overlap > size: got %v, want ErrInvalidChunking", err)
	}
	if _, err := NewChunker(1000, 200); err != nil {
		t.Errorf("default parameters should be valid: %v", err)
	}
}

func TestChunker_Empty(t *testing.T) {
	c, _ := NewChunker(1000, 200)
	if chunks := c.Chunk("d", ""); chunks != nil {
		t.Errorf("empty text should produce no chunks, got %d", len(chunks))
	}
}

func TestChunker_ShortText(t *testing.T) {
	c, _ := NewChunker(1000, 200)
	chunks := c.Chunk("d", "short")
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	ch := chunks[0]
	if ch.Content != "short" || ch.StartPosition != 0 || ch.EndPosition != 5 {
		t.Errorf("chunk: %+v", ch)
	}
	if ch.ID != "d_0" || ch.ChunkIndex != 0 {
		t.Errorf("chunk identity: id=%q index=%d", ch.ID, ch.ChunkIndex)
	}
}

func TestChunker_2500CharDocument(t *testing.T) {
	// 2500 chars at size 1000 / overlap 200 stride out to four windows:
	// 0-1000, 800-1800, 1600-2500, 2400-2500.
	c, _ := NewChunker(1000, 200)
	text := strings.Repeat("a", 2500)
	chunks := c.Chunk("doc", text)
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	wantBounds := [][2]int{{0, 1000}, {800, 1800}, {1600, 2500}, {2400, 2500}}
	for i, ch := range chunks {
		if ch.StartPosition != wantBounds[i][0] || ch.EndPosition != wantBounds[i][1] {
			t.Errorf("chunk %d bounds: %d-%d, want %d-%d",
				i, ch.StartPosition, ch.EndPosition, wantBounds[i][0], wantBounds[i][1])
		}
		if len(ch.Content) != ch.EndPosition-ch.StartPosition {
			t.Errorf("chunk %d content length %d does not match bounds", i, len(ch.Content))
		}
		if ch.ChunkIndex != i {
			t.Errorf("chunk %d has index %d", i, ch.ChunkIndex)
		}
	}
}

func TestChunker_Reconstruction(t *testing.T) {
	// Dropping each non-first chunk's overlapping prefix and concatenating
	// must reproduce the original text.
	texts := []string{
		"abcdefghijklmnopqrstuvwxyz",
		strings.Repeat("0123456789", 123),
		"exact",
	}
	c, err := NewChunker(10, 3)
	if err != nil {
		t.Fatalf("NewChunker: %v", err)
	}
	for _, text := range texts {
		chunks := c.Chunk("d", text)
		var b strings.Builder
		prevEnd := 0
		for _, ch := range chunks {
			start := ch.StartPosition
			content := ch.Content
			if start < prevEnd {
				skip := prevEnd - start
				if skip >= len(content) {
					content = ""
				} else {
					content = content[skip:]
				}
			}
			b.WriteString(content)
			if ch.EndPosition > prevEnd {
				prevEnd = ch.EndPosition
			}
		}
		if b.String() != text {
			t.Errorf("reconstruction failed for text of length %d", len(text))
		}
	}
}

func TestChunker_OffsetsMatchContent(t *testing.T) {
	c, _ := NewChunker(7, 2)
	text := "the quick brown fox jumps over the lazy dog"
	for _, ch := range c.Chunk("d", text) {
		if text[ch.StartPosition:ch.EndPosition] != ch.Content {
			t.Errorf("chunk %d offsets do not slice back to content", ch.ChunkIndex)
		}
	}
}

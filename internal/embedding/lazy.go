package embedding

import (
	"context"
	"fmt"
	"sync"
)

// Lazy defers construction of the underlying embedder until first use and
// then reuses it for the process lifetime. A failed initialization is sticky:
// every call reports ErrUnavailable with the original cause.
type Lazy struct {
	dimensions int
	factory    func() (Embedder, error)

	once sync.Once
	e    Embedder
	err  error
}

// NewLazy wraps factory in a once-per-process initializer. dimensions is
// reported without forcing initialization.
func NewLazy(dimensions int, factory func() (Embedder, error)) *Lazy {
	return &Lazy{dimensions: dimensions, factory: factory}
}

func (l *Lazy) get() (Embedder, error) {
	l.once.Do(func() {
		e, err := l.factory()
		if err != nil {
			l.err = fmt.Errorf("%w: %v", ErrUnavailable, err)
			return
		}
		l.e = e
	})
	return l.e, l.err
}

// Embed initializes the provider on first call and delegates to it.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.Embed(ctx, text)
}

// EmbedBatch initializes the provider on first call and delegates to it.
func (l *Lazy) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e, err := l.get()
	if err != nil {
		return nil, err
	}
	return e.EmbedBatch(ctx, texts)
}

// Dimensions returns the configured embedding dimension.
func (l *Lazy) Dimensions() int {
	return l.dimensions
}

// Close closes the underlying embedder if it was initialized.
func (l *Lazy) Close() error {
	if l.e != nil {
		return l.e.Close()
	}
	return nil
}

// Package vector provides the slot-addressed vector index and nearest-neighbor search.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// dimensionality the index was constructed with.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index defines slot-addressed vector storage and nearest-neighbor search.
//
// Slot ids are assigned by the caller (a monotonically increasing counter owned
// by the metadata store) and are never reused. Delete is a soft delete: the
// slot becomes unsearchable but its storage is not reclaimed. There is no
// compaction; a long-lived index accumulates tombstones (known scalability gap).
type Index interface {
	Insert(ctx context.Context, slot int64, vec []float32) error
	// Search returns up to k live slots ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Delete(ctx context.Context, slots []int64) error
	Save(path string) error
	Load(path string) error
	// Size is the total number of slots including tombstones.
	Size() int
	// Live is the number of searchable slots.
	Live() int
	Close() error
}

// Result is a single nearest-neighbor hit. Distance is squared Euclidean (L2).
type Result struct {
	Slot     int64
	Distance float64
}

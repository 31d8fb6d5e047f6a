package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FlatIndex is a brute-force squared-L2 index over slot-addressed vectors.
// Deleted slots are kept as tombstones and skipped during search. Storage
// grows as needed; there is no fixed capacity.
type FlatIndex struct {
	dimensions int
	slots      []int64
	vectors    [][]float32
	dead       []bool
	bySlot     map[int64]int // slot id -> position in slots/vectors/dead
	mu         sync.RWMutex
}

// NewFlatIndex creates a flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		bySlot:     make(map[int64]int),
	}, nil
}

// Insert stores vec under slot. Inserting an already-present slot replaces its
// vector and clears any tombstone.
func (f *FlatIndex) Insert(ctx context.Context, slot int64, vec []float32) error {
	if len(vec) != f.dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), f.dimensions)
	}
	v := make([]float32, f.dimensions)
	copy(v, vec)
	f.mu.Lock()
	defer f.mu.Unlock()
	if pos, ok := f.bySlot[slot]; ok {
		f.vectors[pos] = v
		f.dead[pos] = false
		return nil
	}
	f.bySlot[slot] = len(f.slots)
	f.slots = append(f.slots, slot)
	f.vectors = append(f.vectors, v)
	f.dead = append(f.dead, false)
	return nil
}

// Search returns up to k live slots ordered by ascending squared L2 distance.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.slots) == 0 {
		return nil, nil
	}
	results := make([]*Result, 0, len(f.slots))
	for i, vec := range f.vectors {
		if f.dead[i] {
			continue
		}
		var dist float64
		for j := 0; j < f.dimensions; j++ {
			d := float64(query[j] - vec[j])
			dist += d * d
		}
		results = append(results, &Result{Slot: f.slots[i], Distance: dist})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Delete tombstones the given slots. Unknown slots are ignored.
func (f *FlatIndex) Delete(ctx context.Context, slots []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, slot := range slots {
		if pos, ok := f.bySlot[slot]; ok {
			f.dead[pos] = true
		}
	}
	return nil
}

// Save persists the index to path. Directory is created if needed.
// Format: dimensions (4), n (4), then per slot: slot id (8), dead flag (1),
// vector (dimensions*4 bytes). All values little-endian.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer w.Close()
	if err := binary.Write(w, binary.LittleEndian, uint32(f.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(f.slots))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, slot := range f.slots {
		if err := binary.Write(w, binary.LittleEndian, slot); err != nil {
			return fmt.Errorf("write slot id: %w", err)
		}
		var dead uint8
		if f.dead[i] {
			dead = 1
		}
		if err := binary.Write(w, binary.LittleEndian, dead); err != nil {
			return fmt.Errorf("write dead flag: %w", err)
		}
		if _, err := w.Write(float32SliceToBytes(f.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file is not an error; the index is unchanged.
func (f *FlatIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	r, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer r.Close()
	var dim, n uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != f.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, f.dimensions)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	slots := make([]int64, 0, n)
	vectors := make([][]float32, 0, n)
	dead := make([]bool, 0, n)
	bySlot := make(map[int64]int, n)
	buf := make([]byte, f.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var slot int64
		if err := binary.Read(r, binary.LittleEndian, &slot); err != nil {
			return fmt.Errorf("read slot id: %w", err)
		}
		var deadFlag uint8
		if err := binary.Read(r, binary.LittleEndian, &deadFlag); err != nil {
			return fmt.Errorf("read dead flag: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		bySlot[slot] = len(slots)
		slots = append(slots, slot)
		vectors = append(vectors, bytesToFloat32Slice(buf))
		dead = append(dead, deadFlag != 0)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slots = slots
	f.vectors = vectors
	f.dead = dead
	f.bySlot = bySlot
	return nil
}

// Size returns the total number of slots including tombstones.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.slots)
}

// Live returns the number of searchable slots.
func (f *FlatIndex) Live() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, d := range f.dead {
		if !d {
			n++
		}
	}
	return n
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

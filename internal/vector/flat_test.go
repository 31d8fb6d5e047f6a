package vector

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestNewFlatIndex_InvalidDimension(t *testing.T) {
	if _, err := NewFlatIndex(0); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestFlatIndex_SearchOrder(t *testing.T) {
	idx, err := NewFlatIndex(2)
	if err != nil {
		t.Fatalf("NewFlatIndex: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := map[int64][]float32{
		0: {1, 0},
		1: {0, 1},
		2: {0.9, 0.1},
	}
	for slot, v := range vecs {
		if err := idx.Insert(ctx, slot, v); err != nil {
			t.Fatalf("Insert(%d): %v", slot, err)
		}
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Slot != 0 {
		t.Errorf("nearest slot=%d, want 0", results[0].Slot)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distances not ascending: %v then %v", results[i-1].Distance, results[i].Distance)
		}
	}
	if results[0].Distance != 0 {
		t.Errorf("exact match distance=%v, want 0", results[0].Distance)
	}
}

func TestFlatIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewFlatIndex(3)
	defer idx.Close()
	ctx := context.Background()

	if err := idx.Insert(ctx, 0, []float32{1, 2}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Insert wrong dim: got %v, want ErrDimensionMismatch", err)
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Search wrong dim: got %v, want ErrDimensionMismatch", err)
	}
}

func TestFlatIndex_SoftDelete(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	defer idx.Close()
	ctx := context.Background()

	_ = idx.Insert(ctx, 10, []float32{1, 0})
	_ = idx.Insert(ctx, 11, []float32{0, 1})
	if err := idx.Delete(ctx, []int64{10}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Slot == 10 {
			t.Error("deleted slot 10 returned from search")
		}
	}
	// Tombstones remain in storage but are not live.
	if idx.Size() != 2 {
		t.Errorf("Size=%d, want 2", idx.Size())
	}
	if idx.Live() != 1 {
		t.Errorf("Live=%d, want 1", idx.Live())
	}
}

func TestFlatIndex_DeleteUnknownSlot(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	defer idx.Close()
	if err := idx.Delete(context.Background(), []int64{99}); err != nil {
		t.Errorf("Delete unknown slot: %v", err)
	}
}

func TestFlatIndex_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	ctx := context.Background()

	idx, _ := NewFlatIndex(2)
	_ = idx.Insert(ctx, 0, []float32{1, 0})
	_ = idx.Insert(ctx, 1, []float32{0, 1})
	_ = idx.Insert(ctx, 2, []float32{0.5, 0.5})
	_ = idx.Delete(ctx, []int64{1})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, _ := NewFlatIndex(2)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Size() != 3 {
		t.Errorf("loaded Size=%d, want 3", loaded.Size())
	}
	if loaded.Live() != 2 {
		t.Errorf("loaded Live=%d, want 2 (tombstone must survive round-trip)", loaded.Live())
	}
	results, err := loaded.Search(ctx, []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search after Load: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Slot != 0 {
		t.Errorf("nearest slot after load=%d, want 0", results[0].Slot)
	}
}

func TestFlatIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	if err := idx.Load(filepath.Join(t.TempDir(), "missing.bin")); err != nil {
		t.Errorf("Load missing file should be a no-op, got %v", err)
	}
}

func TestFlatIndex_LoadDimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewFlatIndex(2)
	_ = idx.Insert(context.Background(), 0, []float32{1, 0})
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	other, _ := NewFlatIndex(3)
	if err := other.Load(path); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Load with wrong dim: got %v, want ErrDimensionMismatch", err)
	}
}

func TestFlatIndex_ReinsertSlotClearsTombstone(t *testing.T) {
	idx, _ := NewFlatIndex(2)
	ctx := context.Background()
	_ = idx.Insert(ctx, 5, []float32{1, 0})
	_ = idx.Delete(ctx, []int64{5})
	_ = idx.Insert(ctx, 5, []float32{0, 1})
	results, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if len(results) != 1 || results[0].Slot != 5 {
		t.Errorf("reinserted slot not searchable: %+v", results)
	}
}

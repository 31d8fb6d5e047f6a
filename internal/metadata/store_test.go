package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/omoide/internal/models"
)

func testDoc(id, userID string) *models.Document {
	return &models.Document{
		ID:           id,
		UserID:       userID,
		OriginalName: id + ".txt",
		FileType:     "txt",
		UploadedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "metadata.json"), nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if s.Count() != 0 {
		t.Errorf("Count=%d, want 0", s.Count())
	}
	if s.DocumentCount() != 0 || s.ChunkCount() != 0 {
		t.Error("empty store should have no documents or chunks")
	}
}

func TestStore_LoadCorruptResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	s := NewStore(path, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load corrupt should reset, not fail: %v", err)
	}
	if s.DocumentCount() != 0 {
		t.Errorf("corrupt store should reset to empty, DocumentCount=%d", s.DocumentCount())
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	s := NewStore(path, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	doc := testDoc("doc1", "alice")
	s.AddDocument(doc)
	slot := s.NextSlot()
	s.AddChunk(&models.Chunk{ID: "doc1_0", DocumentID: "doc1", Content: "hello", ChunkIndex: 0}, slot)
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewStore(path, nil)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Count() != 1 {
		t.Errorf("reloaded Count=%d, want 1", reloaded.Count())
	}
	got := reloaded.Document("doc1")
	if got == nil || got.UserID != "alice" || got.OriginalName != "doc1.txt" {
		t.Errorf("reloaded document: %+v", got)
	}
	if id, ok := reloaded.ChunkBySlot(slot); !ok || id != "doc1_0" {
		t.Errorf("ChunkBySlot(%d)=%q,%v after reload", slot, id, ok)
	}
	docs := reloaded.UserDocuments("alice")
	if len(docs) != 1 || docs[0].ID != "doc1" {
		t.Errorf("UserDocuments after reload: %+v", docs)
	}
}

func TestStore_PersistedFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	s := NewStore(path, nil)
	_ = s.Load()
	s.AddDocument(testDoc("d", "u"))
	s.AddChunk(&models.Chunk{ID: "d_0", DocumentID: "d"}, s.NextSlot())
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{"count", "userDocuments", "documents", "chunks", "chunkToIndex"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("persisted metadata missing top-level field %q", field)
		}
	}
}

func TestStore_NextSlotMonotonic(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "metadata.json"), nil)
	_ = s.Load()
	for want := int64(0); want < 5; want++ {
		if got := s.NextSlot(); got != want {
			t.Fatalf("NextSlot=%d, want %d", got, want)
		}
	}
}

func TestStore_RemoveDocument(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "metadata.json"), nil)
	_ = s.Load()

	s.AddDocument(testDoc("doc1", "alice"))
	s.AddDocument(testDoc("doc2", "alice"))
	slot0 := s.NextSlot()
	slot1 := s.NextSlot()
	slot2 := s.NextSlot()
	s.AddChunk(&models.Chunk{ID: "doc1_0", DocumentID: "doc1"}, slot0)
	s.AddChunk(&models.Chunk{ID: "doc1_1", DocumentID: "doc1"}, slot1)
	s.AddChunk(&models.Chunk{ID: "doc2_0", DocumentID: "doc2"}, slot2)

	slots := s.RemoveDocument("alice", "doc1")
	if len(slots) != 2 {
		t.Errorf("RemoveDocument returned %d slots, want 2", len(slots))
	}
	if s.Document("doc1") != nil {
		t.Error("doc1 should be purged")
	}
	if s.Chunk("doc1_0") != nil || s.Chunk("doc1_1") != nil {
		t.Error("doc1 chunks should be purged")
	}
	if _, ok := s.ChunkBySlot(slot0); ok {
		t.Error("slot mapping for removed chunk should be gone")
	}
	// The counter never decreases after removal.
	if s.Count() != 3 {
		t.Errorf("Count=%d, want 3", s.Count())
	}
	docs := s.UserDocuments("alice")
	if len(docs) != 1 || docs[0].ID != "doc2" {
		t.Errorf("UserDocuments after removal: %+v", docs)
	}
	if s.Chunk("doc2_0") == nil {
		t.Error("doc2 chunk should be untouched")
	}
}

func TestStore_DocumentChunks(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "metadata.json"), nil)
	_ = s.Load()
	s.AddDocument(testDoc("doc1", "u"))
	s.AddChunk(&models.Chunk{ID: "doc1_0", DocumentID: "doc1"}, s.NextSlot())
	s.AddChunk(&models.Chunk{ID: "doc1_1", DocumentID: "doc1"}, s.NextSlot())
	chunks, slots := s.DocumentChunks("doc1")
	if len(chunks) != 2 || len(slots) != 2 {
		t.Errorf("DocumentChunks: %d chunks, %d slots, want 2/2", len(chunks), len(slots))
	}
}

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(file, make([]byte, 100), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err := DiskUsageBytes(file, filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("DiskUsageBytes: %v", err)
	}
	if n != 100 {
		t.Errorf("DiskUsageBytes=%d, want 100", n)
	}
	total, err := DiskUsageBytes(dir)
	if err != nil {
		t.Fatalf("DiskUsageBytes(dir): %v", err)
	}
	if total != 100 {
		t.Errorf("DiskUsageBytes(dir)=%d, want 100", total)
	}
}

// Package metadata provides the persisted JSON store for document and chunk
// records, per-user document lists, and the chunk-to-slot mapping.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/omoide/internal/models"
)

// state is the JSON document persisted to disk. Count is the next vector slot
// id; it only ever increases, so the vector index may hold tombstoned slots
// whose chunks are long gone from here.
type state struct {
	Count         int64                       `json:"count"`
	UserDocuments map[string][]string         `json:"userDocuments"`
	Documents     map[string]*models.Document `json:"documents"`
	Chunks        map[string]*models.Chunk    `json:"chunks"`
	ChunkToIndex  map[string]int64            `json:"chunkToIndex"`
}

// Store is the in-memory metadata mapping backed by a JSON file. It has no
// validation logic of its own; the memory service is responsible for keeping
// documents, chunks, user lists, and the slot mapping consistent.
type Store struct {
	path   string
	logger *zap.Logger

	mu    sync.RWMutex
	st    state
	// indexToChunk is the maintained inverse of ChunkToIndex for O(1) slot
	// resolution during search. Rebuilt on Load, never persisted.
	indexToChunk map[int64]string
}

// NewStore creates a store persisted at path. Call Load before first use.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:   path,
		logger: logger,
	}
}

func emptyState() state {
	return state{
		UserDocuments: make(map[string][]string),
		Documents:     make(map[string]*models.Document),
		Chunks:        make(map[string]*models.Chunk),
		ChunkToIndex:  make(map[string]int64),
	}
}

// Load reads the JSON file at the store's path. A missing file initializes
// empty defaults. A corrupt file is logged and reset to empty defaults rather
// than failing startup, so a damaged store never takes the process down with it.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.st = emptyState()
			s.rebuildInverseLocked()
			return nil
		}
		return fmt.Errorf("read metadata: %w", err)
	}
	var st state
	if err := json.Unmarshal(data, &st); err != nil {
		s.logger.Warn("metadata file corrupt, resetting to empty",
			zap.String("path", s.path), zap.Error(err))
		s.st = emptyState()
		s.rebuildInverseLocked()
		return nil
	}
	if st.UserDocuments == nil {
		st.UserDocuments = make(map[string][]string)
	}
	if st.Documents == nil {
		st.Documents = make(map[string]*models.Document)
	}
	if st.Chunks == nil {
		st.Chunks = make(map[string]*models.Chunk)
	}
	if st.ChunkToIndex == nil {
		st.ChunkToIndex = make(map[string]int64)
	}
	s.st = st
	s.rebuildInverseLocked()
	return nil
}

// Save writes the full current state to the store's path via a temp file and
// rename, so a crash mid-write never leaves a truncated JSON file behind.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.st, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".metadata-*.json")
	if err != nil {
		return fmt.Errorf("create temp metadata: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close metadata: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func (s *Store) rebuildInverseLocked() {
	s.indexToChunk = make(map[int64]string, len(s.st.ChunkToIndex))
	for chunkID, slot := range s.st.ChunkToIndex {
		s.indexToChunk[slot] = chunkID
	}
}

// NextSlot returns the current slot counter and increments it.
func (s *Store) NextSlot() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.st.Count
	s.st.Count++
	return slot
}

// Count returns the next slot id (total slots ever assigned).
func (s *Store) Count() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Count
}

// AddDocument records a document and appends it to its owner's list.
func (s *Store) AddDocument(doc *models.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Documents[doc.ID] = doc
	s.st.UserDocuments[doc.UserID] = append(s.st.UserDocuments[doc.UserID], doc.ID)
}

// AddChunk records a chunk and its slot mapping.
func (s *Store) AddChunk(chunk *models.Chunk, slot int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Chunks[chunk.ID] = chunk
	s.st.ChunkToIndex[chunk.ID] = slot
	s.indexToChunk[slot] = chunk.ID
}

// Document returns the document with the given id, or nil.
func (s *Store) Document(id string) *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Documents[id]
}

// Chunk returns the chunk with the given id, or nil.
func (s *Store) Chunk(id string) *models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Chunks[id]
}

// ChunkBySlot resolves a vector slot back to its chunk id.
func (s *Store) ChunkBySlot(slot int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.indexToChunk[slot]
	return id, ok
}

// UserDocuments returns the documents owned by userID, in insertion order.
func (s *Store) UserDocuments(userID string) []*models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.st.UserDocuments[userID]
	docs := make([]*models.Document, 0, len(ids))
	for _, id := range ids {
		if doc := s.st.Documents[id]; doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

// DocumentChunks returns all chunk records belonging to docID together with
// their slot ids.
func (s *Store) DocumentChunks(docID string) (chunks []*models.Chunk, slots []int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, chunk := range s.st.Chunks {
		if chunk.DocumentID != docID {
			continue
		}
		chunks = append(chunks, chunk)
		if slot, ok := s.st.ChunkToIndex[id]; ok {
			slots = append(slots, slot)
		}
	}
	return chunks, slots
}

// RemoveDocument purges the document record, its chunks, their slot mappings,
// and the document's entry in the owner's list. Returns the slot ids that were
// mapped to the removed chunks.
func (s *Store) RemoveDocument(userID, docID string) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var slots []int64
	for id, chunk := range s.st.Chunks {
		if chunk.DocumentID != docID {
			continue
		}
		if slot, ok := s.st.ChunkToIndex[id]; ok {
			slots = append(slots, slot)
			delete(s.indexToChunk, slot)
		}
		delete(s.st.ChunkToIndex, id)
		delete(s.st.Chunks, id)
	}
	delete(s.st.Documents, docID)
	ids := s.st.UserDocuments[userID]
	filtered := ids[:0]
	for _, id := range ids {
		if id != docID {
			filtered = append(filtered, id)
		}
	}
	s.st.UserDocuments[userID] = filtered
	return slots
}

// DocumentCount returns the number of document records.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.Documents)
}

// ChunkCount returns the number of chunk records.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.Chunks)
}

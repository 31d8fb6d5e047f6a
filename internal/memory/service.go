package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/omoide/internal/config"
	"github.com/hyperjump/omoide/internal/embedding"
	"github.com/hyperjump/omoide/internal/extract"
	"github.com/hyperjump/omoide/internal/metadata"
	"github.com/hyperjump/omoide/internal/models"
	"github.com/hyperjump/omoide/internal/vector"
)

// ErrSourceFileMissing is returned by Store when neither an existing source
// file path nor a content buffer is supplied.
var ErrSourceFileMissing = errors.New("source file missing")

// indexPersistEvery is how many slot insertions pass between index file
// writes during ingest. The index is also written on every delete and at
// shutdown, so at most this many embeddings can need recomputation after a
// crash.
const indexPersistEvery = 10

// overfetchFactor is how many chunk hits are retrieved per requested document
// so that multi-chunk documents and other users' chunks can be folded away
// without starving the result list.
const overfetchFactor = 3

// chunkBonus is the per-matching-chunk addition to a document's combined
// score, rewarding documents matched by several chunks.
const chunkBonus = 0.1

// Service orchestrates ingestion, search, listing, and deletion of per-user
// document memory. Mutations are serialized by an internal lock; reads run
// concurrently.
type Service struct {
	documentsDir string
	indexPath    string
	searchLimit  int

	extractor *extract.Extractor
	chunker   *Chunker
	embedder  embedding.Embedder
	index     vector.Index
	meta      *metadata.Store
	logger    *zap.Logger

	mu sync.RWMutex
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for ingest/search/delete events.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates the memory service. Chunking parameters are validated up
// front; an overlap that is not smaller than the size is a configuration
// error.
func NewService(
	cfg *config.MemoryConfig,
	documentsDir, indexPath string,
	extractor *extract.Extractor,
	embedder embedding.Embedder,
	index vector.Index,
	meta *metadata.Store,
	opts ...ServiceOption,
) (*Service, error) {
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	s := &Service{
		documentsDir: documentsDir,
		indexPath:    indexPath,
		searchLimit:  cfg.SearchLimit,
		extractor:    extractor,
		chunker:      chunker,
		embedder:     embedder,
		index:        index,
		meta:         meta,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// StoreRequest is the input for ingesting a document. Either FilePath (an
// existing file to copy in) or Content (a raw buffer) must be set.
// OriginalName supplies the extension used for format detection; when empty it
// falls back to the base of FilePath.
type StoreRequest struct {
	FilePath     string
	Content      []byte
	OriginalName string
}

// Store ingests a document for userID: the source is saved under an
// id-derived name, parsed, chunked, and each chunk embedded and inserted into
// the vector index at the next slot id. Metadata is persisted once after all
// chunks; the index file is written every time the slot counter crosses a
// multiple of indexPersistEvery.
func (s *Service) Store(ctx context.Context, userID string, req StoreRequest) (*models.Document, error) {
	if req.FilePath == "" && req.Content == nil {
		return nil, ErrSourceFileMissing
	}
	name := req.OriginalName
	if name == "" && req.FilePath != "" {
		name = filepath.Base(req.FilePath)
	}

	data := req.Content
	if req.FilePath != "" {
		var err error
		data, err = os.ReadFile(req.FilePath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSourceFileMissing, req.FilePath)
			}
			return nil, fmt.Errorf("read source file: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docID := uuid.New().String()
	ext := strings.ToLower(filepath.Ext(name))
	if err := os.MkdirAll(s.documentsDir, 0755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	dest := filepath.Join(s.documentsDir, docID+ext)
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return nil, fmt.Errorf("save document file: %w", err)
	}

	text, err := s.extractor.ExtractBytes(data, ext)
	if err != nil {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("extract content: %w", err)
	}

	doc := &models.Document{
		ID:           docID,
		UserID:       userID,
		OriginalName: name,
		FilePath:     dest,
		Content:      text,
		FileType:     strings.TrimPrefix(ext, "."),
		FileSize:     int64(len(data)),
		UploadedAt:   time.Now().UTC(),
	}

	chunks := s.chunker.Chunk(docID, text)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	// Embed everything before touching index or metadata so an embedding
	// failure aborts the ingest without partial state.
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		_ = os.Remove(dest)
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	s.meta.AddDocument(doc)
	for i, ch := range chunks {
		slot := s.meta.NextSlot()
		if err := s.index.Insert(ctx, slot, embeddings[i]); err != nil {
			// Roll back the document record, any slots already inserted,
			// and the saved file so a misconfigured index leaves no trace.
			inserted := s.meta.RemoveDocument(userID, docID)
			_ = s.index.Delete(ctx, inserted)
			_ = os.Remove(dest)
			return nil, fmt.Errorf("insert chunk %d: %w", ch.ChunkIndex, err)
		}
		s.meta.AddChunk(ch, slot)
		if (slot+1)%indexPersistEvery == 0 {
			if err := s.index.Save(s.indexPath); err != nil {
				s.logger.Warn("incremental index save failed",
					zap.String("path", s.indexPath), zap.Error(err))
			}
		}
	}
	if err := s.meta.Save(); err != nil {
		return nil, fmt.Errorf("save metadata: %w", err)
	}

	s.logger.Info("document stored",
		zap.String("user_id", userID),
		zap.String("document_id", docID),
		zap.String("original_name", name),
		zap.Int("chunks", len(chunks)),
	)
	return doc, nil
}

// Search embeds the query and returns up to limit of userID's documents ranked
// by combined score: best chunk similarity (1 - squared L2 distance) plus
// chunkBonus per matching chunk. Search never fails: any internal error is
// logged and an empty result returned, so a degraded embedder or index cannot
// break the chat flow.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) []*models.SearchResult {
	results, err := s.search(ctx, userID, query, limit)
	if err != nil {
		s.logger.Warn("memory search degraded to empty result",
			zap.String("user_id", userID), zap.Error(err))
		return []*models.SearchResult{}
	}
	return results
}

type docMatch struct {
	doc        *models.Document
	similarity float64
	count      int
	excerpt    string
}

func (s *Service) search(ctx context.Context, userID, query string, limit int) ([]*models.SearchResult, error) {
	if limit <= 0 {
		limit = s.searchLimit
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Search(ctx, queryVec, overfetchFactor*limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	matches := make(map[string]*docMatch)
	for _, hit := range hits {
		chunkID, ok := s.meta.ChunkBySlot(hit.Slot)
		if !ok {
			continue
		}
		chunk := s.meta.Chunk(chunkID)
		if chunk == nil {
			continue
		}
		doc := s.meta.Document(chunk.DocumentID)
		if doc == nil || doc.UserID != userID {
			continue
		}
		similarity := 1 - hit.Distance
		m, ok := matches[doc.ID]
		if !ok {
			matches[doc.ID] = &docMatch{doc: doc, similarity: similarity, count: 1, excerpt: chunk.Content}
			continue
		}
		m.count++
		if similarity > m.similarity {
			m.similarity = similarity
			m.excerpt = chunk.Content
		}
	}

	results := make([]*models.SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, &models.SearchResult{
			DocumentID:   m.doc.ID,
			OriginalName: m.doc.OriginalName,
			FileType:     m.doc.FileType,
			UploadedAt:   m.doc.UploadedAt,
			Similarity:   m.similarity,
			ChunkCount:   m.count,
			Score:        m.similarity + chunkBonus*float64(m.count),
			Excerpt:      m.excerpt,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocumentID < results[j].DocumentID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// List returns userID's documents sorted by upload time descending.
func (s *Service) List(userID string) []*models.DocumentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.meta.UserDocuments(userID)
	summaries := make([]*models.DocumentSummary, len(docs))
	for i, doc := range docs {
		summaries[i] = doc.Summary()
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].UploadedAt.After(summaries[j].UploadedAt)
	})
	return summaries
}

// Delete removes docID for userID: the backing file is deleted, every chunk's
// slot is tombstoned in the vector index, and the records are purged from
// metadata. A missing document and one owned by a different user are reported
// identically as (false, nil), so existence does not leak across users. State
// is untouched in that case.
func (s *Service) Delete(ctx context.Context, userID, docID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.meta.Document(docID)
	if doc == nil || doc.UserID != userID {
		return false, nil
	}

	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			return false, fmt.Errorf("remove document file: %w", err)
		}
	}
	_, slots := s.meta.DocumentChunks(docID)
	if err := s.index.Delete(ctx, slots); err != nil {
		return false, fmt.Errorf("tombstone chunks: %w", err)
	}
	s.meta.RemoveDocument(userID, docID)
	if err := s.meta.Save(); err != nil {
		return false, fmt.Errorf("save metadata: %w", err)
	}
	if err := s.index.Save(s.indexPath); err != nil {
		return false, fmt.Errorf("save index: %w", err)
	}

	s.logger.Info("document deleted",
		zap.String("user_id", userID),
		zap.String("document_id", docID),
		zap.Int("chunks", len(slots)),
	)
	return true, nil
}

// Stats reports store-wide counters for the status endpoint.
type Stats struct {
	Documents int   `json:"documents"`
	Chunks    int   `json:"chunks"`
	Slots     int64 `json:"slots"`
	IndexSize int   `json:"index_size"`
	IndexLive int   `json:"index_live"`
}

// Stats returns document, chunk, and index slot counts.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Documents: s.meta.DocumentCount(),
		Chunks:    s.meta.ChunkCount(),
		Slots:     s.meta.Count(),
		IndexSize: s.index.Size(),
		IndexLive: s.index.Live(),
	}
}

// Close persists metadata and the index file and releases the embedder and
// index.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if err := s.meta.Save(); err != nil {
		firstErr = err
	}
	if err := s.index.Save(s.indexPath); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.embedder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.index.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

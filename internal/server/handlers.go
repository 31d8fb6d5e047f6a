package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/omoide/internal/embedding"
	"github.com/hyperjump/omoide/internal/extract"
	"github.com/hyperjump/omoide/internal/memory"
	"github.com/hyperjump/omoide/internal/metadata"
)

// maxUploadBytes caps document uploads at 32 MiB.
const maxUploadBytes = 32 << 20

type storeDocumentRequest struct {
	Content      string `json:"content"`
	OriginalName string `json:"original_name"`
}

type storeDocumentResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId,omitempty"`
}

// handleStoreDocument ingests a document for the user in the URL. It accepts
// either a multipart form with a "file" field or a JSON body with raw content
// and a name (the buffer path used by chat clients storing conversation
// snippets).
func (s *Server) handleStoreDocument(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	req := memory.StoreRequest{}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "file field is required")
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "failed to read upload")
			return
		}
		if len(data) > maxUploadBytes {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		req.Content = data
		req.OriginalName = header.Filename
	} else {
		var body storeDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.Content != "" {
			req.Content = []byte(body.Content)
		}
		req.OriginalName = body.OriginalName
	}

	s.logger.Debug("store document request",
		zap.String("user_id", userID), zap.String("original_name", req.OriginalName))
	doc, err := s.service.Store(r.Context(), userID, req)
	if err != nil {
		s.logger.Error("store failed", zap.String("user_id", userID), zap.Error(err))
		switch {
		case errors.Is(err, memory.ErrSourceFileMissing):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, extract.ErrUnsupportedType):
			s.respondError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, embedding.ErrUnavailable):
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusCreated, storeDocumentResponse{Success: true, DocumentID: doc.ID})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	s.respondJSON(w, http.StatusOK, s.service.List(userID))
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	docID := chi.URLParam(r, "docID")
	s.logger.Debug("delete document request",
		zap.String("user_id", userID), zap.String("document_id", docID))
	ok, err := s.service.Delete(r.Context(), userID, docID)
	if err != nil {
		s.logger.Error("delete failed", zap.String("document_id", docID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		// Missing and not-owned are indistinguishable on purpose.
		s.respondJSON(w, http.StatusNotFound, map[string]bool{"success": false})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("search request",
		zap.String("user_id", userID), zap.String("query", req.Query), zap.Int("limit", req.Limit))
	results := s.service.Search(r.Context(), userID, req.Query, req.Limit)
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.service.Stats()
	resp := map[string]interface{}{
		"documents":  stats.Documents,
		"chunks":     stats.Chunks,
		"slots":      stats.Slots,
		"index_size": stats.IndexSize,
		"index_live": stats.IndexLive,
	}
	configInfo := map[string]interface{}{
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_size":           s.config.Memory.ChunkSize,
		"chunk_overlap":        s.config.Memory.ChunkOverlap,
		"documents_dir":        s.config.Storage.DocumentsDir,
		"index_path":           s.config.Storage.IndexPath,
		"metadata_path":        s.config.Storage.MetadataPath,
	}
	diskBytes, err := metadata.DiskUsageBytes(
		s.config.Storage.DocumentsDir,
		s.config.Storage.IndexPath,
		s.config.Storage.MetadataPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

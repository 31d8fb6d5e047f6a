// Package models defines core data structures for documents, chunks, and search results.
package models

import "time"

// Document represents a stored document owned by a single user.
type Document struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	OriginalName string    `json:"originalName"`
	FilePath     string    `json:"filePath"`
	Content      string    `json:"content"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Chunk is an overlapping window of a document's content, the unit of
// embedding and retrieval. StartPosition and EndPosition are byte offsets
// into the document content.
type Chunk struct {
	ID            string `json:"id"`
	DocumentID    string `json:"documentId"`
	Content       string `json:"content"`
	ChunkIndex    int    `json:"chunkIndex"`
	StartPosition int    `json:"startPosition"`
	EndPosition   int    `json:"endPosition"`
}

// DocumentSummary is a document without its full content, for list responses.
type DocumentSummary struct {
	ID           string    `json:"id"`
	OriginalName string    `json:"originalName"`
	FileType     string    `json:"fileType"`
	FileSize     int64     `json:"fileSize"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

// Summary returns the document's list representation.
func (d *Document) Summary() *DocumentSummary {
	return &DocumentSummary{
		ID:           d.ID,
		OriginalName: d.OriginalName,
		FileType:     d.FileType,
		FileSize:     d.FileSize,
		UploadedAt:   d.UploadedAt,
	}
}

package models

import "time"

// SearchResult is a single document-level search hit.
//
// Similarity is 1 - squared L2 distance of the document's best-matching chunk.
// With unit-normalized embeddings this is not a cosine score and can be
// negative for dissimilar vectors; callers depend on the exact transform.
// Score is the ranking value: Similarity + 0.1 per matching chunk.
type SearchResult struct {
	DocumentID   string    `json:"documentId"`
	OriginalName string    `json:"originalName"`
	FileType     string    `json:"fileType"`
	UploadedAt   time.Time `json:"uploadedAt"`
	Similarity   float64   `json:"similarity"`
	ChunkCount   int       `json:"chunkCount"`
	Score        float64   `json:"score"`
	// Excerpt is the content of the best-matching chunk, for prompt assembly.
	Excerpt string `json:"excerpt"`
}

// Package cli provides CLI utilities for Omoide.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/omoide/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, results []*models.SearchResult, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(w, "No matching documents.")
		return nil
	}
	fmt.Fprintf(w, "\nFound %d matching documents\n\n", len(results))
	for rank, result := range results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f (Similarity: %.4f, Chunks: %d)\n",
			rank+1, result.Score, result.Similarity, result.ChunkCount)
		fmt.Fprintf(w, "ID: %s\n", result.DocumentID)
		fmt.Fprintf(w, "Name: %s (%s)\n", result.OriginalName, result.FileType)
		if result.Excerpt != "" {
			fmt.Fprintf(w, "\n%s\n", Truncate(result.Excerpt, 200))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteDocumentList writes a user's document summaries to w in the given format.
func WriteDocumentList(w io.Writer, docs []*models.DocumentSummary, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents stored.")
		return nil
	}
	fmt.Fprintf(w, "%d documents:\n\n", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(w, "  %s  %-10s %8d bytes  %s  %s\n",
			doc.UploadedAt.Format("2006-01-02 15:04"),
			doc.FileType, doc.FileSize, doc.ID, doc.OriginalName)
	}
	return nil
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

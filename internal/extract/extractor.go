// Package extract provides plain-text extraction from supported document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedType is returned when a file's format is not recognized and
// the plain-text fallback also fails (the content looks binary).
var ErrUnsupportedType = errors.New("unsupported file type")

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
// The format is chosen by file extension; see ExtractBytes.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts text from content based on the given extension
// (including the leading dot). The plain text family (.txt, .md, .json, .csv,
// .log) is returned verbatim after UTF-8 validation. PDF, DOCX, and XLSX are
// parsed from their binary formats with formatting discarded. Unknown
// extensions are attempted as plain text; content that looks binary fails
// with ErrUnsupportedType.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	case ".txt", ".md", ".json", ".csv", ".log", "":
		return extractPlain(content)
	default:
		text, err := extractPlain(content)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
		}
		if looksBinary(content) {
			return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
		}
		return text, nil
	}
}

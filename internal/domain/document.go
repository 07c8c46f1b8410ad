package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Metadata keys attached to every document read from disk
const (
	MetadataKeyFilePath         = "file_path"
	MetadataKeyFileName         = "file_name"
	MetadataKeyFileType         = "file_type"
	MetadataKeyFileSize         = "file_size"
	MetadataKeyCreationDate     = "creation_date"
	MetadataKeyLastModifiedDate = "last_modified_date"
)

// SourceDocument is a document read from the data directory. It is never
// mutated after the loader produces it.
type SourceDocument struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Identifier derives the stable record ID from the document's file path.
// Documents without a usable file_path cannot be reconciled.
func (d SourceDocument) Identifier() (string, error) {
	if d.Metadata == nil {
		return "", fmt.Errorf("%w: no metadata", ErrMissingIdentifier)
	}
	raw, ok := d.Metadata[MetadataKeyFilePath]
	if !ok {
		return "", fmt.Errorf("%w: %s not set", ErrMissingIdentifier, MetadataKeyFilePath)
	}
	path, ok := raw.(string)
	if !ok || strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrMissingIdentifier, MetadataKeyFilePath)
	}
	id := filepath.Base(path)
	if id == "." || id == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %s has no base name", ErrMissingIdentifier, MetadataKeyFilePath)
	}
	return id, nil
}

// StoredRecord is a document persisted in a collection
type StoredRecord struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Embedding []float32      `json:"embedding,omitempty"`
}

// GetResult mirrors the column-oriented shape returned by a vector store get.
// All slices share the same order.
type GetResult struct {
	IDs        []string         `json:"ids"`
	Documents  []string         `json:"documents"`
	Metadatas  []map[string]any `json:"metadatas"`
	Embeddings [][]float32      `json:"embeddings,omitempty"`
}

// Len returns the number of records in the result
func (r *GetResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.IDs)
}

// Contains reports whether id is among the returned records
func (r *GetResult) Contains(id string) bool {
	if r == nil {
		return false
	}
	for _, existing := range r.IDs {
		if existing == id {
			return true
		}
	}
	return false
}

// ScoredRecord is a stored record ranked against a query embedding
type ScoredRecord struct {
	Record StoredRecord `json:"record"`
	Score  float64      `json:"score"`
}

package domain

import "time"

// Collection is a named set of stored records
type Collection struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IngestRun records the outcome of one ingestion pass over a data directory
type IngestRun struct {
	ID           string     `json:"id"`
	CollectionID string     `json:"collection_id"`
	Source       string     `json:"source"`
	Inserted     int        `json:"inserted"`
	Updated      int        `json:"updated"`
	Failed       int        `json:"failed"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// CollectionReport summarizes a collection after ingestion or at startup
type CollectionReport struct {
	Collection      string           `json:"collection"`
	Count           int              `json:"count"`
	TotalTextLength int              `json:"total_text_length"` // characters, not bytes
	EmbeddingDim    int              `json:"embedding_dim"`
	IDs             []string         `json:"ids"`
	Metadatas       []map[string]any `json:"metadatas,omitempty"`
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/ragchat/internal/domain"
)

// CollectionRepository handles collection persistence
type CollectionRepository struct {
	db *DB
}

// NewCollectionRepository creates a new collection repository
func NewCollectionRepository(db *DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// GetOrCreate returns the collection with the given name, creating it first if needed
func (r *CollectionRepository) GetOrCreate(ctx context.Context, name string) (*domain.Collection, error) {
	existing, err := r.Get(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now()
	collection := &domain.Collection{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	metadataJSON, _ := json.Marshal(collection.Metadata)

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO collections (id, name, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO NOTHING
	`, collection.ID, collection.Name, string(metadataJSON), collection.CreatedAt, collection.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	// Another writer may have won the insert; read back whatever is stored
	return r.Get(ctx, name)
}

// Get retrieves a collection by name
func (r *CollectionRepository) Get(ctx context.Context, name string) (*domain.Collection, error) {
	collection := &domain.Collection{}
	var metadataJSON sql.NullString

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, metadata, created_at, updated_at
		FROM collections WHERE name = ?
	`, name).Scan(&collection.ID, &collection.Name, &metadataJSON,
		&collection.CreatedAt, &collection.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("collection %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if metadataJSON.Valid && metadataJSON.String != "" {
		json.Unmarshal([]byte(metadataJSON.String), &collection.Metadata)
	}

	return collection, nil
}

// List retrieves all collections
func (r *CollectionRepository) List(ctx context.Context) ([]*domain.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, metadata, created_at, updated_at
		FROM collections ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []*domain.Collection
	for rows.Next() {
		collection := &domain.Collection{}
		var metadataJSON sql.NullString

		if err := rows.Scan(&collection.ID, &collection.Name, &metadataJSON,
			&collection.CreatedAt, &collection.UpdatedAt); err != nil {
			return nil, err
		}

		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &collection.Metadata)
		}
		collections = append(collections, collection)
	}

	return collections, rows.Err()
}

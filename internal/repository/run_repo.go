package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/ragchat/internal/domain"
)

// RunRepository handles ingest run persistence
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create starts a new run for a collection
func (r *RunRepository) Create(ctx context.Context, collectionID, source string) (*domain.IngestRun, error) {
	run := &domain.IngestRun{
		ID:           uuid.New().String(),
		CollectionID: collectionID,
		Source:       source,
		StartedAt:    time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, collection_id, source, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.CollectionID, run.Source, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest run: %w", err)
	}

	return run, nil
}

// Finish stores the final counters of a run
func (r *RunRepository) Finish(ctx context.Context, run *domain.IngestRun) error {
	now := time.Now()
	run.FinishedAt = &now

	res, err := r.db.ExecContext(ctx, `
		UPDATE ingest_runs SET inserted = ?, updated = ?, failed = ?, finished_at = ?
		WHERE id = ?
	`, run.Inserted, run.Updated, run.Failed, now, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish ingest run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("ingest run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// Latest returns the most recently started run of a collection
func (r *RunRepository) Latest(ctx context.Context, collectionID string) (*domain.IngestRun, error) {
	run := &domain.IngestRun{}
	var finishedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, collection_id, source, inserted, updated, failed, started_at, finished_at
		FROM ingest_runs WHERE collection_id = ?
		ORDER BY started_at DESC LIMIT 1
	`, collectionID).Scan(&run.ID, &run.CollectionID, &run.Source,
		&run.Inserted, &run.Updated, &run.Failed, &run.StartedAt, &finishedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ingest run for %s: %w", collectionID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

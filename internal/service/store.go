package service

import (
	"context"

	"github.com/liliang-cn/ragchat/internal/domain"
)

// RecordStore is the vector store surface the services depend on
type RecordStore interface {
	Get(ctx context.Context, ids []string) (*domain.GetResult, error)
	Add(ctx context.Context, records []domain.StoredRecord) error
	Update(ctx context.Context, records []domain.StoredRecord) error
	Upsert(ctx context.Context, records []domain.StoredRecord) error
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredRecord, error)
}

// RunStore persists ingest run outcomes
type RunStore interface {
	Create(ctx context.Context, collectionID, source string) (*domain.IngestRun, error)
	Finish(ctx context.Context, run *domain.IngestRun) error
}

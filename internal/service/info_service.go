package service

import (
	"context"
	"errors"

	"github.com/liliang-cn/ragchat/internal/domain"
)

// CollectionLister lists stored collections
type CollectionLister interface {
	List(ctx context.Context) ([]*domain.Collection, error)
}

// RunLookup returns the latest ingest run of a collection
type RunLookup interface {
	Latest(ctx context.Context, collectionID string) (*domain.IngestRun, error)
}

// CollectionInfo describes one collection and its last ingestion
type CollectionInfo struct {
	Report  *domain.CollectionReport `json:"report"`
	LastRun *domain.IngestRun        `json:"last_run,omitempty"`
}

// InfoService answers read-only questions about the store
type InfoService struct {
	collections CollectionLister
	runs        RunLookup
}

// NewInfoService creates a new info service
func NewInfoService(collections CollectionLister, runs RunLookup) *InfoService {
	return &InfoService{collections: collections, runs: runs}
}

// ListCollections returns every collection in the store
func (s *InfoService) ListCollections(ctx context.Context) ([]*domain.Collection, error) {
	return s.collections.List(ctx)
}

// Describe reports a collection's records and its most recent ingest run, if any
func (s *InfoService) Describe(ctx context.Context, collection *domain.Collection, records RecordStore) (*CollectionInfo, error) {
	report, err := BuildReport(ctx, collection, records)
	if err != nil {
		return nil, err
	}

	info := &CollectionInfo{Report: report}
	if s.runs != nil {
		run, err := s.runs.Latest(ctx, collection.ID)
		switch {
		case err == nil:
			info.LastRun = run
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}
	return info, nil
}

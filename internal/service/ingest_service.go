package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/embedding"
	"github.com/liliang-cn/ragchat/internal/loader"
	"go.uber.org/zap"
)

// IngestService reconciles source documents into a collection
type IngestService struct {
	collection *domain.Collection
	records    RecordStore
	runs       RunStore
	embedder   embedding.Embedder
	loader     *loader.Loader
	logger     *zap.Logger

	// AtomicUpsert writes through RecordStore.Upsert instead of Add/Update
	AtomicUpsert bool

	// one ingestion at a time; the get-then-write sequence is not atomic
	mu sync.Mutex
}

// IngestResult counts what one reconciliation did
type IngestResult struct {
	Inserted int             `json:"inserted"`
	Updated  int             `json:"updated"`
	Failed   int             `json:"failed"`
	Errors   []DocumentError `json:"errors,omitempty"`
}

// Total returns the number of documents processed
func (r *IngestResult) Total() int {
	return r.Inserted + r.Updated + r.Failed
}

// DocumentError describes a document that could not be reconciled
type DocumentError struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   string `json:"error"`
}

// ProgressFunc is called after every processed document
type ProgressFunc func(done, total int)

// NewIngestService creates a new ingest service. runs may be nil.
func NewIngestService(
	collection *domain.Collection,
	records RecordStore,
	runs RunStore,
	embedder embedding.Embedder,
	ldr *loader.Loader,
	logger *zap.Logger,
) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		collection: collection,
		records:    records,
		runs:       runs,
		embedder:   embedder,
		loader:     ldr,
		logger:     logger,
	}
}

// Reconcile inserts documents whose identifier is new and fully replaces
// those already stored. A document that fails is logged and counted, and the
// rest of the batch continues. Only context cancellation aborts the run.
func (s *IngestService) Reconcile(ctx context.Context, docs []domain.SourceDocument, progress ProgressFunc) (*IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &IngestResult{}
	// identifier -> file path of the document that claimed it in this batch
	seen := make(map[string]string, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		id, err := s.reconcileOne(ctx, doc, seen, result)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, ctxErr
			}
			result.Failed++
			result.Errors = append(result.Errors, DocumentError{Index: i, ID: id, Err: err.Error()})
			s.logger.Warn("skipping document",
				zap.Int("index", i),
				zap.String("id", id),
				zap.Error(err),
			)
		}

		if progress != nil {
			progress(i+1, len(docs))
		}
	}

	s.logger.Info("ingestion finished",
		zap.String("collection", s.collection.Name),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *IngestService) reconcileOne(ctx context.Context, doc domain.SourceDocument, seen map[string]string, result *IngestResult) (string, error) {
	id, err := doc.Identifier()
	if err != nil {
		return "", err
	}
	if first, ok := seen[id]; ok {
		return id, fmt.Errorf("%w: %s already loaded from %s", domain.ErrDuplicateIdentifier, id, first)
	}

	existing, err := s.records.Get(ctx, []string{id})
	if err != nil {
		return id, fmt.Errorf("failed to look up record: %w", err)
	}

	vector, err := embedding.EmbedOne(ctx, s.embedder, doc.Text)
	if err != nil {
		return id, fmt.Errorf("failed to embed document: %w", err)
	}

	record := domain.StoredRecord{
		ID:        id,
		Text:      doc.Text,
		Metadata:  doc.Metadata,
		Embedding: vector,
	}
	exists := existing.Contains(id)

	switch {
	case s.AtomicUpsert:
		err = s.records.Upsert(ctx, []domain.StoredRecord{record})
	case exists:
		err = s.records.Update(ctx, []domain.StoredRecord{record})
	default:
		err = s.records.Add(ctx, []domain.StoredRecord{record})
	}
	if err != nil {
		return id, fmt.Errorf("failed to write record: %w", err)
	}

	seen[id] = fmt.Sprint(doc.Metadata[domain.MetadataKeyFilePath])
	if exists {
		result.Updated++
		s.logger.Info("updated document", zap.String("id", id))
	} else {
		result.Inserted++
		s.logger.Info("inserted document", zap.String("id", id))
	}
	return id, nil
}

// IngestDirectory loads every matching file under dir and reconciles it,
// recording the run when a run store is configured.
func (s *IngestService) IngestDirectory(ctx context.Context, dir string, progress ProgressFunc) (*IngestResult, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("no loader configured")
	}

	docs, err := s.loader.Load(dir)
	if err != nil {
		return nil, err
	}
	s.logger.Info("loaded documents", zap.String("dir", dir), zap.Int("count", len(docs)))

	var run *domain.IngestRun
	if s.runs != nil {
		run, err = s.runs.Create(ctx, s.collection.ID, dir)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.Reconcile(ctx, docs, progress)
	if run != nil && result != nil {
		run.Inserted, run.Updated, run.Failed = result.Inserted, result.Updated, result.Failed
		if finishErr := s.runs.Finish(context.WithoutCancel(ctx), run); finishErr != nil {
			s.logger.Error("failed to record ingest run", zap.String("run_id", run.ID), zap.Error(finishErr))
		}
	}
	return result, err
}

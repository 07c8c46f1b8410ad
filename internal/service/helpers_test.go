package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/liliang-cn/ragchat/internal/repository"
	"github.com/stretchr/testify/require"
)

type testStore struct {
	db         *repository.DB
	collection *domain.Collection
	records    *repository.RecordRepository
	runs       *repository.RunRepository
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	collection, err := repository.NewCollectionRepository(db).GetOrCreate(context.Background(), "genai")
	require.NoError(t, err)

	return &testStore{
		db:         db,
		collection: collection,
		records:    repository.NewRecordRepository(db, collection.ID),
		runs:       repository.NewRunRepository(db),
	}
}

func doc(path, text string) domain.SourceDocument {
	return domain.SourceDocument{
		Text:     text,
		Metadata: map[string]any{domain.MetadataKeyFilePath: path, "author": "test"},
	}
}

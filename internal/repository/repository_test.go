package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/ragchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "store", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRecords(t *testing.T) (*RecordRepository, *domain.Collection) {
	t.Helper()
	db := newTestDB(t)
	collection, err := NewCollectionRepository(db).GetOrCreate(context.Background(), "genai")
	require.NoError(t, err)
	return NewRecordRepository(db, collection.ID), collection
}

func TestCollectionRepository_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewCollectionRepository(newTestDB(t))

	_, err := repo.Get(ctx, "genai")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first, err := repo.GetOrCreate(ctx, "genai")
	require.NoError(t, err)
	assert.Equal(t, "genai", first.Name)
	assert.NotEmpty(t, first.ID)

	second, err := repo.GetOrCreate(ctx, "genai")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRecordRepository_AddGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRecords(t)

	err := repo.Add(ctx, []domain.StoredRecord{{
		ID:        "a.txt",
		Text:      "alpha",
		Metadata:  map[string]any{"file_path": "/data/a.txt"},
		Embedding: []float32{1, 0, 0},
	}})
	require.NoError(t, err)

	res, err := repo.Get(ctx, []string{"a.txt", "missing.txt"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "alpha", res.Documents[0])
	assert.Equal(t, "/data/a.txt", res.Metadatas[0]["file_path"])
	assert.Equal(t, []float32{1, 0, 0}, res.Embeddings[0])

	err = repo.Add(ctx, []domain.StoredRecord{{ID: "a.txt", Text: "again", Embedding: []float32{0, 1, 0}}})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = repo.Update(ctx, []domain.StoredRecord{{ID: "a.txt", Text: "alpha v2", Embedding: []float32{0, 1, 0}}})
	require.NoError(t, err)

	res, err = repo.Get(ctx, []string{"a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "alpha v2", res.Documents[0])
	assert.Nil(t, res.Metadatas[0])

	err = repo.Update(ctx, []domain.StoredRecord{{ID: "nope.txt", Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordRepository_FailedBatchWritesNothing(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRecords(t)

	err := repo.Update(ctx, []domain.StoredRecord{{ID: "a.txt", Text: "a"}})
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = repo.Add(ctx, []domain.StoredRecord{
		{ID: "a.txt", Text: "a"},
		{ID: "a.txt", Text: "duplicate"},
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecordRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRecords(t)

	rec := domain.StoredRecord{ID: "a.txt", Text: "one", Embedding: []float32{1, 2}}
	require.NoError(t, repo.Upsert(ctx, []domain.StoredRecord{rec}))

	rec.Text = "two"
	require.NoError(t, repo.Upsert(ctx, []domain.StoredRecord{rec}))

	res, err := repo.Get(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "two", res.Documents[0])
}

func TestRecordRepository_GetPreservesRequestOrder(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRecords(t)

	require.NoError(t, repo.Add(ctx, []domain.StoredRecord{
		{ID: "a.txt", Text: "a"},
		{ID: "b.txt", Text: "b"},
		{ID: "c.txt", Text: "c"},
	}))

	res, err := repo.Get(ctx, []string{"c.txt", "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c.txt", "a.txt"}, res.IDs)

	res, err = repo.Get(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, res.IDs)
}

func TestRecordRepository_DimensionIsPinned(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRecords(t)

	require.NoError(t, repo.Add(ctx, []domain.StoredRecord{{ID: "a.txt", Text: "a", Embedding: []float32{1, 2, 3}}}))

	err := repo.Upsert(ctx, []domain.StoredRecord{{ID: "b.txt", Text: "b", Embedding: []float32{1, 2}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = repo.Search(ctx, []float32{1, 2}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestRecordRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRecords(t)

	require.NoError(t, repo.Add(ctx, []domain.StoredRecord{
		{ID: "x.txt", Text: "x axis", Embedding: []float32{1, 0}},
		{ID: "y.txt", Text: "y axis", Embedding: []float32{0, 1}},
		{ID: "diag.txt", Text: "diagonal", Embedding: []float32{1, 1}},
		{ID: "blank.txt", Text: "no embedding"},
	}))

	results, err := repo.Search(ctx, []float32{1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x.txt", results[0].Record.ID)
	assert.Equal(t, "diag.txt", results[1].Record.ID)
	assert.Greater(t, results[0].Score, results[1].Score)

	all, err := repo.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRecordRepository_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	collections := NewCollectionRepository(db)

	a, err := collections.GetOrCreate(ctx, "a")
	require.NoError(t, err)
	b, err := collections.GetOrCreate(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, NewRecordRepository(db, a.ID).Add(ctx, []domain.StoredRecord{{ID: "doc.txt", Text: "in a"}}))
	require.NoError(t, NewRecordRepository(db, b.ID).Add(ctx, []domain.StoredRecord{{ID: "doc.txt", Text: "in b"}}))

	res, err := NewRecordRepository(db, b.ID).Get(ctx, []string{"doc.txt"})
	require.NoError(t, err)
	assert.Equal(t, []string{"in b"}, res.Documents)
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	collection, err := NewCollectionRepository(db).GetOrCreate(ctx, "genai")
	require.NoError(t, err)
	runs := NewRunRepository(db)

	_, err = runs.Latest(ctx, collection.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	run, err := runs.Create(ctx, collection.ID, "data")
	require.NoError(t, err)
	run.Inserted, run.Updated, run.Failed = 2, 1, 1
	require.NoError(t, runs.Finish(ctx, run))

	latest, err := runs.Latest(ctx, collection.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, 2, latest.Inserted)
	assert.Equal(t, 1, latest.Updated)
	assert.Equal(t, 1, latest.Failed)
	assert.NotNil(t, latest.FinishedAt)
}

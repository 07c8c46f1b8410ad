package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/liliang-cn/ragchat/internal/domain"
)

// RecordRepository stores records of a single collection. Identifiers are
// unique per collection; Add and Update follow get/add/update vector store
// semantics, Upsert is the atomic insert-or-replace primitive.
type RecordRepository struct {
	db           *DB
	collectionID string
}

// NewRecordRepository creates a record repository bound to a collection
func NewRecordRepository(db *DB, collectionID string) *RecordRepository {
	return &RecordRepository{db: db, collectionID: collectionID}
}

// Get returns the records with the given ids in request order, skipping ids
// that are not stored. An empty id list returns every record.
func (r *RecordRepository) Get(ctx context.Context, ids []string) (*domain.GetResult, error) {
	query := `SELECT id, document, metadata, embedding FROM records WHERE collection_id = ?`
	args := []any{r.collectionID}
	if len(ids) > 0 {
		query += ` AND id IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.StoredRecord)
	var order []string
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = rec
		order = append(order, rec.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		order = order[:0]
		seen := make(map[string]bool, len(ids))
		for _, id := range ids {
			if _, ok := byID[id]; ok && !seen[id] {
				order = append(order, id)
				seen[id] = true
			}
		}
	}

	result := &domain.GetResult{
		IDs:        make([]string, 0, len(order)),
		Documents:  make([]string, 0, len(order)),
		Metadatas:  make([]map[string]any, 0, len(order)),
		Embeddings: make([][]float32, 0, len(order)),
	}
	for _, id := range order {
		rec := byID[id]
		result.IDs = append(result.IDs, rec.ID)
		result.Documents = append(result.Documents, rec.Text)
		result.Metadatas = append(result.Metadatas, rec.Metadata)
		result.Embeddings = append(result.Embeddings, rec.Embedding)
	}
	return result, nil
}

type writeMode int

const (
	modeAdd writeMode = iota
	modeUpdate
	modeUpsert
)

const (
	insertRecordSQL = `
		INSERT INTO records (collection_id, id, document, metadata, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	upsertRecordSQL = insertRecordSQL + `
		ON CONFLICT(collection_id, id) DO UPDATE SET
			document = excluded.document,
			metadata = excluded.metadata,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`
	updateRecordSQL = `
		UPDATE records SET document = ?, metadata = ?, embedding = ?, updated_at = ?
		WHERE collection_id = ? AND id = ?`
)

// Add inserts new records. It fails without writing anything if any id is already stored.
func (r *RecordRepository) Add(ctx context.Context, records []domain.StoredRecord) error {
	return r.write(ctx, records, modeAdd)
}

// Update replaces text, metadata and embedding of stored records. It fails
// without writing anything if any id is not stored.
func (r *RecordRepository) Update(ctx context.Context, records []domain.StoredRecord) error {
	return r.write(ctx, records, modeUpdate)
}

// Upsert inserts or fully replaces records in one statement per record
func (r *RecordRepository) Upsert(ctx context.Context, records []domain.StoredRecord) error {
	return r.write(ctx, records, modeUpsert)
}

func (r *RecordRepository) write(ctx context.Context, records []domain.StoredRecord, mode writeMode) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.checkDimension(ctx, tx, records); err != nil {
		return err
	}

	now := time.Now()
	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: empty record id", domain.ErrInvalidRequest)
		}
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", rec.ID, err)
		}
		embedding := encodeEmbedding(rec.Embedding)

		switch mode {
		case modeAdd:
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection_id = ? AND id = ?`,
				r.collectionID, rec.ID).Scan(&exists)
			if err != nil {
				return err
			}
			if exists > 0 {
				return fmt.Errorf("record %s: %w", rec.ID, domain.ErrAlreadyExists)
			}
			if _, err := tx.ExecContext(ctx, insertRecordSQL, r.collectionID, rec.ID, rec.Text,
				string(metadataJSON), embedding, now, now); err != nil {
				return fmt.Errorf("failed to add record %s: %w", rec.ID, err)
			}
		case modeUpdate:
			res, err := tx.ExecContext(ctx, updateRecordSQL, rec.Text, string(metadataJSON), embedding, now,
				r.collectionID, rec.ID)
			if err != nil {
				return fmt.Errorf("failed to update record %s: %w", rec.ID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return fmt.Errorf("record %s: %w", rec.ID, domain.ErrNotFound)
			}
		case modeUpsert:
			if _, err := tx.ExecContext(ctx, upsertRecordSQL, r.collectionID, rec.ID, rec.Text,
				string(metadataJSON), embedding, now, now); err != nil {
				return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
			}
		}
	}

	return tx.Commit()
}

// checkDimension pins the collection dimension on the first embedding written
// and rejects embeddings of any other length afterwards.
func (r *RecordRepository) checkDimension(ctx context.Context, tx *sql.Tx, records []domain.StoredRecord) error {
	var dim int
	if err := tx.QueryRowContext(ctx, `SELECT dimension FROM collections WHERE id = ?`, r.collectionID).Scan(&dim); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("collection %s: %w", r.collectionID, domain.ErrNotFound)
		}
		return err
	}

	for _, rec := range records {
		n := len(rec.Embedding)
		if n == 0 {
			continue
		}
		if dim == 0 {
			dim = n
			if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ?, updated_at = ? WHERE id = ?`, dim, time.Now(), r.collectionID); err != nil {
				return err
			}
			continue
		}
		if n != dim {
			return fmt.Errorf("%w: record %s has %d, collection has %d", domain.ErrDimensionMismatch, rec.ID, n, dim)
		}
	}
	return nil
}

// Count returns the number of records in the collection
func (r *RecordRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection_id = ?`, r.collectionID).Scan(&count)
	return count, err
}

// Search ranks every embedded record by cosine similarity to the query and returns the best topK
func (r *RecordRepository) Search(ctx context.Context, embedding []float32, topK int) ([]domain.ScoredRecord, error) {
	all, err := r.Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredRecord, 0, all.Len())
	for i, id := range all.IDs {
		vec := all.Embeddings[i]
		if len(vec) == 0 {
			continue
		}
		if len(vec) != len(embedding) {
			return nil, fmt.Errorf("%w: query has %d, record %s has %d", domain.ErrDimensionMismatch, len(embedding), id, len(vec))
		}
		scored = append(scored, domain.ScoredRecord{
			Record: domain.StoredRecord{
				ID:        id,
				Text:      all.Documents[i],
				Metadata:  all.Metadatas[i],
				Embedding: vec,
			},
			Score: cosineSimilarity(embedding, vec),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}

func scanRecord(rows *sql.Rows) (domain.StoredRecord, error) {
	var rec domain.StoredRecord
	var metadataJSON sql.NullString
	var embedding []byte
	if err := rows.Scan(&rec.ID, &rec.Text, &metadataJSON, &embedding); err != nil {
		return rec, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
			return rec, fmt.Errorf("failed to decode metadata for %s: %w", rec.ID, err)
		}
	}
	rec.Embedding = decodeEmbedding(embedding)
	return rec, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

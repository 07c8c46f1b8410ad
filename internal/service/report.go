package service

import (
	"context"
	"unicode/utf8"

	"github.com/liliang-cn/ragchat/internal/domain"
)

// BuildReport summarizes the records of a collection
func BuildReport(ctx context.Context, collection *domain.Collection, records RecordStore) (*domain.CollectionReport, error) {
	all, err := records.Get(ctx, nil)
	if err != nil {
		return nil, err
	}

	report := &domain.CollectionReport{
		Collection: collection.Name,
		Count:      all.Len(),
		IDs:        all.IDs,
		Metadatas:  all.Metadatas,
	}
	for i, text := range all.Documents {
		report.TotalTextLength += utf8.RuneCountInString(text)
		if report.EmbeddingDim == 0 && len(all.Embeddings[i]) > 0 {
			report.EmbeddingDim = len(all.Embeddings[i])
		}
	}
	return report, nil
}

package repository

import (
	"context"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// RecordRepository defines the lookups the worker makes against the record store.
// The DynamoDB implementation is in dynamo_record_repo.go, the PostgreSQL one
// in pg_record_repo.go. Tests use a hand-written mock (mock_record_repo.go).
type RecordRepository interface {
	// BatchGet returns the records found for ids. Missing ids are absent from
	// the map; duplicates are looked up once.
	BatchGet(ctx context.Context, ids []domain.RecordID) (map[domain.RecordID]domain.Record, error)
}

// CategoryScanner walks every record's id and category values. It feeds the
// index seeder.
type CategoryScanner interface {
	ScanCategories(ctx context.Context, fn func(id domain.RecordID, categories []string) error) error
}

func dedupe(ids []domain.RecordID) []domain.RecordID {
	seen := make(map[domain.RecordID]struct{}, len(ids))
	out := make([]domain.RecordID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

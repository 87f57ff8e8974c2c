package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// SeedBatchSize is the number of documents sent per _bulk request.
const SeedBatchSize = 500

// CategoryScanner walks every record's id and category values.
type CategoryScanner interface {
	ScanCategories(ctx context.Context, fn func(id domain.RecordID, categories []string) error) error
}

// Indexer is satisfied by *Client.
type Indexer interface {
	Bulk(ctx context.Context, docs []Document) (int, error)
}

// SeedResult reports what a seeding run did.
type SeedResult struct {
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
	Indexed int `json:"indexed"`
}

// Seeder rebuilds the category index from the record store.
type Seeder struct {
	scanner       CategoryScanner
	indexer       Indexer
	idField       string
	categoryField string
	batchSize     int
	logger        *zap.Logger
}

func NewSeeder(scanner CategoryScanner, indexer Indexer, idField, categoryField string, logger *zap.Logger) *Seeder {
	return &Seeder{
		scanner:       scanner,
		indexer:       indexer,
		idField:       idField,
		categoryField: categoryField,
		batchSize:     SeedBatchSize,
		logger:        logger.Named("seeder"),
	}
}

// Run scans the store and indexes every record that has an id and at least
// one category. Categories are lower-cased to match the worker's term query.
func (s *Seeder) Run(ctx context.Context) (SeedResult, error) {
	var (
		res   SeedResult
		batch = make([]Document, 0, s.batchSize)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.indexer.Bulk(ctx, batch)
		if err != nil {
			return err
		}
		res.Indexed += n
		s.logger.Info("batch indexed", zap.Int("docs", n), zap.Int("indexed_total", res.Indexed))
		batch = batch[:0]
		return nil
	}

	err := s.scanner.ScanCategories(ctx, func(id domain.RecordID, categories []string) error {
		res.Scanned++
		cats := lowerNonEmpty(categories)
		if id == "" || len(cats) == 0 {
			res.Skipped++
			return nil
		}
		batch = append(batch, Document{
			ID: string(id),
			Source: map[string]any{
				s.idField:       string(id),
				s.categoryField: cats,
			},
		})
		if len(batch) >= s.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("seed index: %w", err)
	}
	if err := flush(); err != nil {
		return res, fmt.Errorf("seed index: %w", err)
	}

	s.logger.Info("seeding complete",
		zap.Int("scanned", res.Scanned),
		zap.Int("skipped", res.Skipped),
		zap.Int("indexed", res.Indexed),
	)
	return res, nil
}

func lowerNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

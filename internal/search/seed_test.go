package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

type scanRow struct {
	id   domain.RecordID
	cats []string
}

type fakeScanner []scanRow

func (f fakeScanner) ScanCategories(ctx context.Context, fn func(domain.RecordID, []string) error) error {
	for _, r := range f {
		if err := fn(r.id, r.cats); err != nil {
			return err
		}
	}
	return nil
}

type fakeIndexer struct {
	batches [][]Document
	err     error
}

func (f *fakeIndexer) Bulk(_ context.Context, docs []Document) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	cp := make([]Document, len(docs))
	copy(cp, docs)
	f.batches = append(f.batches, cp)
	return len(docs), nil
}

func TestSeeder_LowercasesAndSkips(t *testing.T) {
	idx := &fakeIndexer{}
	s := NewSeeder(fakeScanner{
		{"b-1", []string{"Italian", "Pizza"}},
		{"", []string{"thai"}},
		{"b-3", nil},
		{"b-4", []string{"  "}},
	}, idx, "business_id", "CuisineSet", zap.NewNop())

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Scanned: 4, Skipped: 3, Indexed: 1}, res)
	require.Len(t, idx.batches, 1)
	assert.Equal(t, Document{
		ID:     "b-1",
		Source: map[string]any{"business_id": "b-1", "CuisineSet": []string{"italian", "pizza"}},
	}, idx.batches[0][0])
}

func TestSeeder_BatchesOf500(t *testing.T) {
	rows := make(fakeScanner, 1201)
	for i := range rows {
		rows[i] = scanRow{domain.RecordID(fmt.Sprintf("b-%d", i)), []string{"thai"}}
	}
	idx := &fakeIndexer{}

	res, err := NewSeeder(rows, idx, "business_id", "CuisineSet", zap.NewNop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1201, res.Indexed)
	require.Len(t, idx.batches, 3)
	assert.Len(t, idx.batches[0], 500)
	assert.Len(t, idx.batches[1], 500)
	assert.Len(t, idx.batches[2], 201)
}

func TestSeeder_BulkFailureStops(t *testing.T) {
	boom := errors.New("bulk rejected")
	_, err := NewSeeder(fakeScanner{{"b-1", []string{"thai"}}}, &fakeIndexer{err: boom}, "business_id", "CuisineSet", zap.NewNop()).
		Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

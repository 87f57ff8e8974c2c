package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

func TestMockRecordRepository(t *testing.T) {
	m := NewMockRecordRepository()
	m.Put("a", domain.Record{"name": "Alpha"})

	got, err := m.BatchGet(context.Background(), []domain.RecordID{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, map[domain.RecordID]domain.Record{"a": {"name": "Alpha"}}, got)
	assert.Equal(t, 1, m.CallCount())
}

func TestDecodeAttributes(t *testing.T) {
	rec, err := decodeAttributes([]byte(`{"name":"Alpha","rating":4.5,"tags":["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, domain.Record{"name": "Alpha", "rating": 4.5, "tags": []any{"x"}}, rec)

	rec, err = decodeAttributes(nil)
	require.NoError(t, err)
	assert.Empty(t, rec)

	_, err = decodeAttributes([]byte(`not json`))
	assert.Error(t, err)
}

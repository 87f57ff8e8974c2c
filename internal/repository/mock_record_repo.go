package repository

import (
	"context"
	"sync"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// MockRecordRepository is a hand-written, in-memory implementation of
// RecordRepository used in unit tests.
type MockRecordRepository struct {
	mu      sync.RWMutex
	records map[domain.RecordID]domain.Record

	// BatchGetErr, when set, is returned by every BatchGet call.
	BatchGetErr error
	// Calls records the ids of every BatchGet call.
	Calls [][]domain.RecordID
}

func NewMockRecordRepository() *MockRecordRepository {
	return &MockRecordRepository{records: make(map[domain.RecordID]domain.Record)}
}

// Put stores rec under id.
func (m *MockRecordRepository) Put(id domain.RecordID, rec domain.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = rec
}

func (m *MockRecordRepository) BatchGet(_ context.Context, ids []domain.RecordID) (map[domain.RecordID]domain.Record, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]domain.RecordID(nil), ids...))
	m.mu.Unlock()

	if m.BatchGetErr != nil {
		return nil, m.BatchGetErr
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.RecordID]domain.Record, len(ids))
	for _, id := range ids {
		if rec, ok := m.records[id]; ok {
			out[id] = rec
		}
	}
	return out, nil
}

// CallCount returns how many times BatchGet was invoked.
func (m *MockRecordRepository) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Calls)
}

var _ RecordRepository = (*MockRecordRepository)(nil)

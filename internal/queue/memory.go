package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/notifyhub/suggestion-worker/internal/domain"
)

// DeadLetter is a message the Memory queue redrove after too many receives.
type DeadLetter struct {
	MessageID    string
	Body         string
	ReceiveCount int
}

type memoryEntry struct {
	id        string
	body      string
	receipt   string
	receives  int
	sentAt    time.Time
	visibleAt time.Time
}

// Memory is an in-process queue with visibility timeouts, receive counts and
// a max-receive redrive into a dead-letter list. It mirrors the SQS contract
// closely enough to drive the worker in tests and local runs.
type Memory struct {
	mu          sync.Mutex
	entries     []*memoryEntry
	dead        []DeadLetter
	maxReceives int
	seq         int
	now         func() time.Time
}

// MemoryOption configures a Memory queue.
type MemoryOption func(*Memory)

// WithClock replaces time.Now, letting tests advance past visibility timeouts.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory creates an empty queue. maxReceives <= 0 disables redrive.
func NewMemory(maxReceives int, opts ...MemoryOption) *Memory {
	m := &Memory{maxReceives: maxReceives, now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Send appends a message and returns its id.
func (m *Memory) Send(body string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := m.now()
	e := &memoryEntry{
		id:        fmt.Sprintf("msg-%d", m.seq),
		body:      body,
		sentAt:    now,
		visibleAt: now,
	}
	m.entries = append(m.entries, e)
	return e.id
}

func (m *Memory) ReceiveOne(_ context.Context, visibility time.Duration) (*domain.InFlightMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for i := 0; i < len(m.entries); {
		e := m.entries[i]
		if now.Before(e.visibleAt) {
			i++
			continue
		}
		if m.maxReceives > 0 && e.receives >= m.maxReceives {
			m.dead = append(m.dead, DeadLetter{MessageID: e.id, Body: e.body, ReceiveCount: e.receives})
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			continue
		}

		m.seq++
		e.receives++
		e.receipt = fmt.Sprintf("%s#%d", e.id, m.seq)
		e.visibleAt = now.Add(visibility)
		return &domain.InFlightMessage{
			MessageID:     e.id,
			Body:          e.body,
			ReceiptHandle: e.receipt,
			ReceiveCount:  e.receives,
			SentAt:        e.sentAt,
		}, nil
	}
	return nil, nil
}

func (m *Memory) Delete(_ context.Context, receipt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.inFlight(receipt)
	if i < 0 {
		return ErrReceiptExpired
	}
	m.entries = append(m.entries[:i], m.entries[i+1:]...)
	return nil
}

func (m *Memory) ExtendVisibility(_ context.Context, receipt string, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.inFlight(receipt)
	if i < 0 {
		return ErrReceiptExpired
	}
	m.entries[i].visibleAt = m.now().Add(timeout)
	return nil
}

// inFlight returns the index of the invisible entry holding receipt, or -1.
func (m *Memory) inFlight(receipt string) int {
	now := m.now()
	for i, e := range m.entries {
		if e.receipt == receipt && receipt != "" && now.Before(e.visibleAt) {
			return i
		}
	}
	return -1
}

// Len returns the number of messages still held, visible or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// DeadLetters returns a copy of the redriven messages.
func (m *Memory) DeadLetters() []DeadLetter {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeadLetter, len(m.dead))
	copy(out, m.dead)
	return out
}

var _ Queue = (*Memory)(nil)

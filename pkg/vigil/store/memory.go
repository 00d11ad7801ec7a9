package store

import (
	"context"
	"iter"
	"sync"

	"github.com/randalmurphal/vigil/pkg/vigil/index"
)

// MemoryStore is an in-memory event store.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	events []*Event
	idx    *index.Index
	closed bool
}

// NewMemoryStore creates a new in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{idx: index.New()}
}

// Append implements Store.
func (m *MemoryStore) Append(ctx context.Context, events ...*Event) ([]Seq, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	// Validate everything before storing anything
	next := Seq(len(m.events))
	prepared := make([]*Event, len(events))
	for i, e := range events {
		stored, err := prepare(e, next+Seq(i))
		if err != nil {
			return nil, err
		}
		prepared[i] = stored
	}

	seqs := make([]Seq, len(prepared))
	for i, e := range prepared {
		m.events = append(m.events, e)
		m.idx.Add(uint32(e.Seq), e.Type, e.Subject)
		seqs[i] = e.Seq
	}
	return seqs, nil
}

// Get implements Source.
func (m *MemoryStore) Get(_ context.Context, seq Seq) (*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	if int(seq) >= len(m.events) {
		return nil, ErrNotFound
	}
	return m.events[seq], nil
}

// Scan implements Source. Events appended after the scan starts are not
// yielded.
func (m *MemoryStore) Scan(ctx context.Context) iter.Seq2[Seq, error] {
	return func(yield func(Seq, error) bool) {
		m.mu.RLock()
		closed, n := m.closed, len(m.events)
		m.mu.RUnlock()

		if closed {
			yield(0, ErrStoreClosed)
			return
		}
		for i := 0; i < n; i++ {
			if i&(scanCheckInterval-1) == 0 {
				if err := ctx.Err(); err != nil {
					yield(0, err)
					return
				}
			}
			if !yield(Seq(i), nil) {
				return
			}
		}
	}
}

// Index implements Store.
func (m *MemoryStore) Index() index.Reader {
	return m.idx
}

// Len implements Store.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.events = nil
	return nil
}

// Package store provides the event sources queries read from.
//
// The engine only needs the narrow Source interface plus an index.Reader.
// MemoryStore and SQLiteStore are reference implementations that also own
// their index and keep it current on append. They make no durability or
// consistency promises beyond what SQLite itself provides.
package store

import (
	"context"
	"errors"
	"iter"

	"github.com/randalmurphal/vigil/pkg/vigil/index"
)

// Source is the read interface the execution engine consumes.
// Implementations must be safe for concurrent readers.
type Source interface {
	// Get returns the event at seq.
	// Returns ErrNotFound if no such event exists.
	Get(ctx context.Context, seq Seq) (*Event, error)

	// Scan yields every event position in append order. Iteration stops at
	// the first error, which is yielded with a zero Seq.
	Scan(ctx context.Context) iter.Seq2[Seq, error]
}

// Store is a Source that accepts appends and maintains an index.
type Store interface {
	Source

	// Append validates and stores events, returning their positions.
	// Either every event is stored or none is.
	Append(ctx context.Context, events ...*Event) ([]Seq, error)

	// Index returns the store's type and subject index.
	Index() index.Reader

	// Len returns the number of stored events.
	Len() int

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates an event doesn't exist.
	ErrNotFound = errors.New("event not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("event store closed")

	// ErrIllegalSubject indicates a malformed subject path.
	ErrIllegalSubject = errors.New("illegal subject")

	// ErrInvalidEvent indicates an event missing required attributes.
	ErrInvalidEvent = errors.New("invalid event")
)

// scanCheckInterval is how many positions Scan yields between context checks.
const scanCheckInterval = 1024

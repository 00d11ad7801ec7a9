package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/randalmurphal/vigil/pkg/vigil/index"
)

// scanPageSize bounds how many positions Scan reads per query, so no
// connection is held while the caller processes a page.
const scanPageSize = 1024

// SQLiteStore persists events to SQLite and keeps an in-memory index that is
// rebuilt when the store is opened.
// It is suitable for single-process use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	idx    *index.Index
	next   Seq
	closed bool
}

// NewSQLiteStore opens or creates an event store.
// The path should be a file path (e.g., "./events.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			id TEXT NOT NULL,
			source TEXT NOT NULL,
			specversion TEXT NOT NULL,
			type TEXT NOT NULL,
			subject TEXT NOT NULL,
			time TEXT NOT NULL,
			datacontenttype TEXT NOT NULL,
			data BLOB
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	s := &SQLiteStore{db: db, idx: index.New()}
	if err := s.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) rebuildIndex() error {
	rows, err := s.db.Query(`SELECT seq, type, subject FROM events ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		var typ, subject string
		if err := rows.Scan(&seq, &typ, &subject); err != nil {
			return fmt.Errorf("scan index row: %w", err)
		}
		s.idx.Add(uint32(seq), typ, subject)
		s.next = Seq(seq) + 1
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate index rows: %w", err)
	}
	return nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, events ...*Event) ([]Seq, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	prepared := make([]*Event, len(events))
	for i, e := range events {
		stored, err := prepare(e, s.next+Seq(i))
		if err != nil {
			return nil, err
		}
		prepared[i] = stored
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (seq, id, source, specversion, type, subject, time, datacontenttype, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, e := range prepared {
		if _, err := stmt.ExecContext(ctx,
			int64(e.Seq), e.ID, e.Source, e.SpecVersion, e.Type, e.Subject,
			e.Time.UTC().Format(time.RFC3339Nano), e.DataContentType, e.Data,
		); err != nil {
			return nil, fmt.Errorf("append event: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}

	seqs := make([]Seq, len(prepared))
	for i, e := range prepared {
		s.idx.Add(uint32(e.Seq), e.Type, e.Subject)
		seqs[i] = e.Seq
	}
	s.next += Seq(len(prepared))
	return seqs, nil
}

// Get implements Source.
func (s *SQLiteStore) Get(ctx context.Context, seq Seq) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	e := &Event{Seq: seq}
	var timestamp string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, specversion, type, subject, time, datacontenttype, data
		FROM events WHERE seq = ?
	`, int64(seq)).Scan(&e.ID, &e.Source, &e.SpecVersion, &e.Type, &e.Subject, &timestamp, &e.DataContentType, &e.Data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	e.Time, err = time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse event time: %w", err)
	}
	return e, nil
}

// Scan implements Source. Positions are read a page at a time.
func (s *SQLiteStore) Scan(ctx context.Context) iter.Seq2[Seq, error] {
	return func(yield func(Seq, error) bool) {
		after := int64(-1)
		for {
			page, err := s.scanPage(ctx, after)
			if err != nil {
				yield(0, err)
				return
			}
			for _, seq := range page {
				if !yield(seq, nil) {
					return
				}
			}
			if len(page) < scanPageSize {
				return
			}
			after = int64(page[len(page)-1])
		}
	}
}

func (s *SQLiteStore) scanPage(ctx context.Context, after int64) ([]Seq, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT seq FROM events WHERE seq > ? ORDER BY seq LIMIT ?`, after, scanPageSize)
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	defer rows.Close()

	page := make([]Seq, 0, scanPageSize)
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, fmt.Errorf("scan event position: %w", err)
		}
		page = append(page, Seq(seq))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return page, nil
}

// Index implements Store.
func (s *SQLiteStore) Index() index.Reader {
	return s.idx
}

// Len implements Store.
func (s *SQLiteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int(s.next)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

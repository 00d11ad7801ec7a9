package benchmarks

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/vigil/pkg/vigil/store"
)

// BenchmarkAppend_Memory appends batches of 100 events.
func BenchmarkAppend_Memory(b *testing.B) {
	s := store.NewMemoryStore()
	defer s.Close()
	ctx := context.Background()
	events := makeEvents(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Append(ctx, events...); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAppend_SQLite appends batches of 100 events in one transaction.
func BenchmarkAppend_SQLite(b *testing.B) {
	s, err := store.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	events := makeEvents(100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Append(ctx, events...); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkGet_SQLite reads single events by position.
func BenchmarkGet_SQLite(b *testing.B) {
	s, err := store.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()
	ctx := context.Background()
	seqs, err := s.Append(ctx, makeEvents(1000)...)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Get(ctx, seqs[i%len(seqs)]); err != nil {
			b.Fatal(err)
		}
	}
}

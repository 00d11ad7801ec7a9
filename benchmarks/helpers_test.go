package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/randalmurphal/vigil/pkg/vigil"
	"github.com/randalmurphal/vigil/pkg/vigil/store"
)

var departments = []string{"eng", "sales", "ops", "legal"}

// makeEvents builds n events spread over four types and forty companies.
func makeEvents(n int) []*store.Event {
	events := make([]*store.Event, n)
	for i := range events {
		payload := json.RawMessage(fmt.Sprintf(
			`{"name":"emp-%d","department":%q,"salary":%d,"address":{"city":"c%d"}}`,
			i, departments[i%len(departments)], 50+i%200, i%7))
		events[i] = store.MustEvent(
			fmt.Sprintf("employee-%d", i%4),
			fmt.Sprintf("companies/c%d/employees/%d", i%40, i),
			payload,
		)
	}
	return events
}

func memoryStore(b *testing.B, n int) *store.MemoryStore {
	b.Helper()
	s := store.NewMemoryStore()
	b.Cleanup(func() { s.Close() })
	if _, err := s.Append(context.Background(), makeEvents(n)...); err != nil {
		b.Fatal(err)
	}
	return s
}

func mustCompile(text string) *vigil.CompiledQuery {
	return vigil.MustCompile(text, nil)
}

// drain runs cq to completion and fails on error.
func drain(b *testing.B, engine *vigil.Engine, cq *vigil.CompiledQuery) {
	rows, err := engine.Execute(context.Background(), cq)
	if err != nil {
		b.Fatal(err)
	}
	if _, err := rows.All(); err != nil {
		b.Fatal(err)
	}
}

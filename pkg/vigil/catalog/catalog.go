// Package catalog keeps named, precompiled queries for an engine.
//
// A catalog is the read-model registry of an application: queries are
// compiled once at startup, so malformed ones are reported before any
// request runs them, and executed by name afterwards.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/vigil/pkg/vigil"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

// ErrQueryNotFound is returned when no query is prepared under a name.
var ErrQueryNotFound = errors.New("query not found")

// runAllLimit bounds the executions RunAll keeps in flight.
const runAllLimit = 4

// Catalog manages compiled queries by name.
type Catalog struct {
	engine  *vigil.Engine
	queries map[string]*vigil.CompiledQuery
	mu      sync.RWMutex
}

// New creates an empty catalog whose queries compile and run on engine.
func New(engine *vigil.Engine) *Catalog {
	return &Catalog{
		engine:  engine,
		queries: make(map[string]*vigil.CompiledQuery),
	}
}

// Prepare compiles text against the engine's schema and stores it under
// name. A compile error is returned unchanged in kind, see vigil.KindOf.
func (c *Catalog) Prepare(name, text string) (*vigil.CompiledQuery, error) {
	if name == "" {
		return nil, errors.New("query name is required")
	}

	cq, err := c.engine.Compile(context.Background(), text)
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", name, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.queries[name]; exists {
		return nil, fmt.Errorf("query %q already prepared", name)
	}
	c.queries[name] = cq
	return cq, nil
}

// MustPrepare prepares a query, panicking on error.
func (c *Catalog) MustPrepare(name, text string) *vigil.CompiledQuery {
	cq, err := c.Prepare(name, text)
	if err != nil {
		panic(err)
	}
	return cq
}

// PrepareAll prepares every query of the map and reports all failures
// together. Queries that compile are kept even when others fail.
func (c *Catalog) PrepareAll(queries map[string]string) error {
	names := make([]string, 0, len(queries))
	for name := range queries {
		names = append(names, name)
	}
	slices.Sort(names)

	var errs []error
	for _, name := range names {
		if _, err := c.Prepare(name, queries[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Get returns the compiled query for name.
func (c *Catalog) Get(name string) (*vigil.CompiledQuery, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cq, exists := c.queries[name]
	return cq, exists
}

// List returns all prepared query names in sorted order.
func (c *Catalog) List() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.queries))
	for name := range c.queries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Remove drops the query for name.
func (c *Catalog) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.queries, name)
}

// Run executes the query prepared under name.
func (c *Catalog) Run(ctx context.Context, name string, opts ...vigil.ExecOption) (*vigil.Rows, error) {
	cq, exists := c.Get(name)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, name)
	}
	return c.engine.Execute(ctx, cq, opts...)
}

// Result is the outcome of one query run by RunAll.
type Result struct {
	// Name is the query that was executed.
	Name string `json:"name"`

	// Rows holds every row the query produced.
	Rows []value.Value `json:"rows"`

	// Error contains error details if the query failed.
	Error string `json:"error,omitempty"`
}

// RunAll executes the named queries concurrently and collects their rows.
// Results follow the order of names and include any that failed.
func (c *Catalog) RunAll(ctx context.Context, names ...string) []Result {
	results := make([]Result, len(names))

	var g errgroup.Group
	g.SetLimit(runAllLimit)
	for i, name := range names {
		g.Go(func() error {
			results[i] = Result{Name: name}
			rows, err := c.Run(ctx, name)
			if err == nil {
				results[i].Rows, err = rows.All()
			}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

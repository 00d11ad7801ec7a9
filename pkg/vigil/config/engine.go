package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/store"
)

// Engine holds the settings of the engine: section.
type Engine struct {
	StrictRuntimeTypes bool
	MaxGroups          int
	LogLevel           slog.Level
	QueryTimeout       time.Duration
}

// Engine decodes the engine: section. Missing keys keep their zero value;
// the log level defaults to info.
//
//	engine:
//	  strict_runtime_types: false
//	  max_groups: 10000
//	  log_level: debug
//	  query_timeout: 30s
func (c Config) Engine() (Engine, error) {
	sec := c.Sub("engine")
	e := Engine{
		StrictRuntimeTypes: sec.Bool("strict_runtime_types", false),
		MaxGroups:          sec.Int("max_groups", 0),
		QueryTimeout:       sec.Duration("query_timeout", 0),
		LogLevel:           slog.LevelInfo,
	}
	if e.QueryTimeout < 0 {
		return Engine{}, sectionErr("engine", "query_timeout must not be negative, got %s", e.QueryTimeout)
	}
	if e.MaxGroups < 0 {
		return Engine{}, sectionErr("engine", "max_groups must not be negative, got %d", e.MaxGroups)
	}
	if level := sec.String("log_level", ""); level != "" {
		if err := e.LogLevel.UnmarshalText([]byte(level)); err != nil {
			return Engine{}, sectionErr("engine", "log_level: %w", err)
		}
	}
	return e, nil
}

// Schema decodes the schema: section into payload type hints. Keys are
// dotted payload paths or nested maps; values are type names.
//
//	schema:
//	  salary: number
//	  user:
//	    name: string
//
// A config without a schema section yields a nil schema.
func (c Config) Schema() (*eventql.Schema, error) {
	if !c.Has("schema") {
		return nil, nil
	}
	paths := c.StringMap("schema")
	schema, err := eventql.NewSchema(paths)
	if err != nil {
		return nil, &SectionError{Section: "schema", Err: err}
	}
	return schema, nil
}

// Store holds the settings of the store: section.
type Store struct {
	Driver string // memory or sqlite
	Path   string
}

// Store decodes the store: section. The driver defaults to memory.
func (c Config) Store() Store {
	sec := c.Sub("store")
	return Store{
		Driver: strings.ToLower(sec.String("driver", "memory")),
		Path:   sec.String("path", ""),
	}
}

func (s Store) validate() error {
	switch s.Driver {
	case "memory", "":
		return nil
	case "sqlite":
		if s.Path == "" {
			return sectionErr("store", "path is required for the sqlite driver")
		}
		return nil
	default:
		return sectionErr("store", "unknown driver %q", s.Driver)
	}
}

// Open opens the configured event store. An invalid section is reported as
// a *SectionError.
func (s Store) Open() (store.Store, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.Driver == "sqlite" {
		st, err := store.NewSQLiteStore(s.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	}
	return store.NewMemoryStore(), nil
}

// Queries returns the queries: section, query name to EventQL text, for
// preparing a catalog at startup.
func (c Config) Queries() map[string]string {
	return c.StringMap("queries")
}

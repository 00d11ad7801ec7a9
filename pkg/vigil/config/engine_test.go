package config_test

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/vigil/pkg/vigil/config"
	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/store"
)

const sample = `
engine:
  strict_runtime_types: true
  max_groups: 500
  log_level: debug
  query_timeout: 2s
store:
  driver: memory
schema:
  salary: number
  user:
    name: string
queries:
  hires: 'FROM e IN events WHERE e.type == "employee-hired" PROJECT INTO {id: e.id}'
`

func TestEngine(t *testing.T) {
	cfg, err := config.FromYAML([]byte(sample))
	require.NoError(t, err)

	got, err := cfg.Engine()
	require.NoError(t, err)
	assert.Equal(t, config.Engine{
		StrictRuntimeTypes: true,
		MaxGroups:          500,
		LogLevel:           slog.LevelDebug,
		QueryTimeout:       2 * time.Second,
	}, got)
}

func TestEngine_Defaults(t *testing.T) {
	got, err := config.New(nil).Engine()
	require.NoError(t, err)
	assert.False(t, got.StrictRuntimeTypes)
	assert.Zero(t, got.MaxGroups)
	assert.Equal(t, slog.LevelInfo, got.LogLevel)
}

func TestEngine_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative groups", "engine:\n  max_groups: -1\n"},
		{"bad level", "engine:\n  log_level: loud\n"},
		{"negative timeout", "engine:\n  query_timeout: -1s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromYAML([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = cfg.Engine()
			var se *config.SectionError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "engine", se.Section)
		})
	}
}

func TestSchema(t *testing.T) {
	cfg, err := config.FromYAML([]byte(sample))
	require.NoError(t, err)

	schema, err := cfg.Schema()
	require.NoError(t, err)
	require.NotNil(t, schema)

	typ, ok := schema.Lookup("salary")
	require.True(t, ok)
	assert.True(t, typ.Is(eventql.TypeNumber))
	typ, ok = schema.Lookup("user.name")
	require.True(t, ok)
	assert.True(t, typ.Is(eventql.TypeString))

	none, err := config.New(nil).Schema()
	require.NoError(t, err)
	assert.Nil(t, none)

	bad, err := config.FromYAML([]byte("schema:\n  salary: decimal\n"))
	require.NoError(t, err)
	_, err = bad.Schema()
	assert.Error(t, err)
}

func TestStore_Open(t *testing.T) {
	mem, err := config.New(nil).Store().Open()
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, mem)
	require.NoError(t, mem.Close())

	path := filepath.Join(t.TempDir(), "events.db")
	sq, err := config.Store{Driver: "sqlite", Path: path}.Open()
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, sq)
	require.NoError(t, sq.Close())

	_, err = config.Store{Driver: "sqlite"}.Open()
	assert.Error(t, err)
	_, err = config.Store{Driver: "postgres"}.Open()
	assert.Error(t, err)
}

func TestQueries(t *testing.T) {
	cfg, err := config.FromYAML([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"hires": `FROM e IN events WHERE e.type == "employee-hired" PROJECT INTO {id: e.id}`,
	}, cfg.Queries())
	assert.Nil(t, config.New(nil).Queries())
}

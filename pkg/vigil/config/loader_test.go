package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/vigil/pkg/vigil/config"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vigil.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Sub("engine").Int("max_groups", 0))
	assert.Contains(t, cfg.Queries(), "hires")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		section string
	}{
		{"negative groups", "engine:\n  max_groups: -1\n", "engine"},
		{"bad level", "engine:\n  log_level: loud\n", "engine"},
		{"unknown driver", "store:\n  driver: postgres\n", "store"},
		{"sqlite without path", "store:\n  driver: sqlite\n", "store"},
		{"unknown type", "schema:\n  salary: decimal\n", "schema"},
		{"query not text", "queries:\n  hires: 3\n", "queries"},
		{"empty query", "queries:\n  hires: ''\n", "queries"},
		{"queries not a map", "queries: [a, b]\n", "queries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.FromYAML([]byte(tt.yaml))
			require.NoError(t, err)

			err = cfg.Validate()
			var se *config.SectionError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.section, se.Section)
			assert.Empty(t, se.Path)
		})
	}

	cfg, err := config.FromYAML([]byte(sample))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, config.New(nil).Validate())
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("store:\n  driver: postgres\n"), 0o600))
	_, err := config.Load(bad)
	var se *config.SectionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, bad, se.Path)
	assert.Equal(t, "store", se.Section)
	assert.EqualError(t, err, "config "+bad+` store: unknown driver "postgres"`)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o600))
	_, err = config.Load(broken)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, broken, se.Path)
	assert.Empty(t, se.Section)

	_, err = config.Load(filepath.Join(dir, "missing.yml"))
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

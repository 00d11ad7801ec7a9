package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/vigil/pkg/vigil/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
	}{
		{"nil map", nil},
		{"empty map", map[string]any{}},
		{"with values", map[string]any{"key": "value"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(tt.data)
			assert.NotNil(t, cfg.Raw())
		})
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"key exists", map[string]any{"name": "alice"}, "alice"},
		{"key missing", map[string]any{"other": "value"}, "default"},
		{"empty string", map[string]any{"name": ""}, ""},
		{"wrong type", map[string]any{"name": 123}, "default"},
		{"nil map", nil, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, config.New(tt.data).String("name", "default"))
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want time.Duration
	}{
		{"string", "1m30s", 90 * time.Second},
		{"int seconds", 5, 5 * time.Second},
		{"int64 seconds", int64(2), 2 * time.Second},
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"invalid string", "soon", time.Hour},
		{"wrong type", true, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New(map[string]any{"timeout": tt.val})
			assert.Equal(t, tt.want, cfg.Duration("timeout", time.Hour))
		})
	}
}

func TestIntAndBool(t *testing.T) {
	cfg := config.New(map[string]any{
		"int":      3,
		"int64":    int64(4),
		"whole":    5.0,
		"fraction": 5.5,
		"flag":     true,
		"text":     "yes",
	})

	assert.Equal(t, 3, cfg.Int("int", 0))
	assert.Equal(t, 4, cfg.Int("int64", 0))
	assert.Equal(t, 5, cfg.Int("whole", 0))
	assert.Equal(t, -1, cfg.Int("fraction", -1))
	assert.Equal(t, -1, cfg.Int("missing", -1))
	assert.True(t, cfg.Bool("flag", false))
	assert.False(t, cfg.Bool("text", false))
	assert.True(t, cfg.Has("text"))
	assert.False(t, cfg.Has("missing"))
}

func TestSubAndStringMap(t *testing.T) {
	cfg := config.New(map[string]any{
		"schema": map[string]any{
			"salary": "number",
			"user":   map[string]any{"name": "string", "age": 3},
		},
		"scalar": "x",
	})

	assert.Equal(t, map[string]string{"salary": "number", "user.name": "string"}, cfg.StringMap("schema"))
	assert.Nil(t, cfg.StringMap("scalar"))
	assert.Equal(t, "number", cfg.Sub("schema").String("salary", ""))
	assert.Empty(t, cfg.Sub("scalar").Raw())
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "vigil.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("engine:\n  max_groups: 10\n"), 0o600))
	cfg, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Sub("engine").Int("max_groups", 0))

	jsonPath := filepath.Join(dir, "vigil.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"engine": {"max_groups": 20}}`), 0o600))
	cfg, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Sub("engine").Int("max_groups", 0))

	tomlPath := filepath.Join(dir, "vigil.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte("x = 1"), 0o600))
	_, err = config.FromFile(tomlPath)
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = config.FromYAML([]byte("engine: [unterminated"))
	assert.Error(t, err)
	_, err = config.FromJSON([]byte("{"))
	assert.Error(t, err)
}

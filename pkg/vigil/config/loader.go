package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SectionError reports a config file that cannot be used, either because it
// does not parse or because one of its sections is invalid.
type SectionError struct {
	Path    string // file the config was read from; empty for in-memory data
	Section string // engine, store, schema or queries; empty for the file as a whole
	Err     error
}

func (e *SectionError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		b.WriteString(" " + e.Path)
	}
	if e.Section != "" {
		b.WriteString(" " + e.Section)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *SectionError) Unwrap() error { return e.Err }

func sectionErr(section string, format string, args ...any) *SectionError {
	return &SectionError{Section: section, Err: fmt.Errorf(format, args...)}
}

type decodeFunc func([]byte, any) error

var decoders = map[string]decodeFunc{
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
	".json": json.Unmarshal,
}

// Load reads path and validates every vigil section. The watcher loads
// through it, so a file with a bad section is never applied.
func Load(path string) (Config, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		var se *SectionError
		if errors.As(err, &se) {
			se.Path = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// FromFile parses a config file, picking the format by extension
// (.yaml, .yml or .json). Sections are not validated; see Load.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Config{}, &SectionError{Path: path, Err: fmt.Errorf("unsupported config file extension: %s", ext)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &SectionError{Path: path, Err: err}
	}
	cfg, err := parse(decode, strings.TrimPrefix(ext, "."), data)
	if err != nil {
		var se *SectionError
		if errors.As(err, &se) {
			se.Path = path
		}
		return Config{}, err
	}
	return cfg, nil
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	return parse(yaml.Unmarshal, "yaml", data)
}

// FromJSON parses JSON data into a Config.
func FromJSON(data []byte) (Config, error) {
	return parse(json.Unmarshal, "json", data)
}

func parse(decode decodeFunc, format string, data []byte) (Config, error) {
	var m map[string]any
	if err := decode(data, &m); err != nil {
		return Config{}, &SectionError{Err: fmt.Errorf("parse %s: %w", format, err)}
	}
	return New(m), nil
}

// Validate decodes the engine, store, schema and queries sections and
// returns a *SectionError for the first one that is invalid.
func (c Config) Validate() error {
	if _, err := c.Engine(); err != nil {
		return err
	}
	if err := c.Store().validate(); err != nil {
		return err
	}
	if _, err := c.Schema(); err != nil {
		return err
	}
	return c.validateQueries()
}

func (c Config) validateQueries() error {
	if !c.Has("queries") {
		return nil
	}
	raw, ok := c.data["queries"].(map[string]any)
	if !ok {
		return sectionErr("queries", "must map query names to EventQL text")
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		text, ok := raw[name].(string)
		if !ok {
			return sectionErr("queries", "%s: want EventQL text, got %T", name, raw[name])
		}
		if strings.TrimSpace(text) == "" {
			return sectionErr("queries", "%s: empty query", name)
		}
	}
	return nil
}

/*
Package config loads engine settings from YAML or JSON files.

# Overview

Config wraps a map[string]any and provides typed accessor methods that
return a default value when a key is missing or has the wrong type. The
vigil-specific sections are decoded on top of it:

	engine:
	  strict_runtime_types: false
	  max_groups: 10000
	  log_level: info
	  query_timeout: 30s
	store:
	  driver: sqlite
	  path: events.db
	schema:
	  salary: number
	  user:
	    name: string

Engine and Store return plain structs. Schema returns the payload type hints
the analyzer uses to type-check e.data paths.

# Loading

	cfg, err := config.Load("vigil.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	settings, err := cfg.Engine()

Load parses the file and validates each section. Failures are reported as
*SectionError, which names the file and the section at fault. FromFile,
FromYAML and FromJSON parse without validating.

# Hot Reload

Watcher keeps the latest good configuration of one file and runs callbacks
after each reload:

	w, err := config.NewWatcher("vigil.yaml", logger)
	w.OnChange(func(cfg config.Config) {
	    if schema, err := cfg.Schema(); err == nil {
	        engine.SetSchema(schema)
	    }
	})
	stop, err := w.Watch()
	defer stop()

# Thread Safety

Config is safe for concurrent read access. Watcher is safe for concurrent use.
*/
package config

/*
Package vigil provides an EventQL query engine over CloudEvents-shaped event
stores.

# Overview

A query names a source, binds each item to a variable, and projects one
object per result row:

	FROM e IN events
	WHERE e.type == "employee-hired"
	GROUP BY e.data.department
	PROJECT INTO {department: e.data.department, count: COUNT(), avgSalary: AVG(e.data.salary)}

Sources are the whole log (events), a subject subtree ("companies/acme"), or
the catalogs of known event types (eventtypes) and subjects (subjects).

Queries go through four steps:
  - parse into a syntax tree (package eventql)
  - static type and grouping analysis (package eventql)
  - planning into stages, using the type and subject indices (package plan)
  - lazy execution as pull iterators (package exec)

Compile covers the first three and reports every static problem before any
event is read.

# Basic Usage

	st := store.NewMemoryStore()
	st.Append(ctx, store.MustEvent("user-created", "users/1", json.RawMessage(`{"name":"ada"}`)))

	engine := vigil.NewFromStore(st)
	rows, err := engine.Query(ctx, `FROM e IN events PROJECT INTO {name: e.data.name}`)
	if err != nil {
	    log.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
	    fmt.Println(rows.Value())
	}
	if err := rows.Err(); err != nil {
	    log.Fatal(err)
	}

# Runtime Type Errors

Payloads are schemaless, so some type errors can only be seen while
evaluating. By default the offending row is excluded, counted in
Stats.Skipped and logged at debug level. WithStrict(true) turns them into
query failures.

# Errors

KindOf classifies any returned error:

	switch vigil.KindOf(err) {
	case vigil.KindParse, vigil.KindType, vigil.KindGrouping:
	    // bad query text
	case vigil.KindRuntime:
	    // the source failed or the query was cancelled
	}

# Observability

WithLogger, WithMetrics and WithSpanManager wire the engine to log/slog,
OpenTelemetry or Prometheus (see package observability). Every execution is
tagged with a query id.

# Thread Safety

Engine and CompiledQuery are safe for concurrent use. Rows belongs to one
goroutine.
*/
package vigil

package eventql_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
)

func analyze(t *testing.T, text string, schema *eventql.Schema) (*eventql.Query, error) {
	t.Helper()
	q, err := eventql.Parse(text)
	require.NoError(t, err)
	return q, eventql.Analyze(q, schema)
}

func TestAnalyze_Valid(t *testing.T) {
	queries := []string{
		`FROM e IN events PROJECT INTO {id: e.id, type: e.type, payload: e.data}`,
		`FROM e IN events WHERE e.type == "user-created" AND e.data.age > 18 PROJECT INTO {name: e.data.name}`,
		`FROM e IN "companies/acme" PROJECT INTO {s: e.subject}`,
		`FROM e IN events WHERE e.data.x == null PROJECT INTO {id: e.id}`,
		`FROM e IN events GROUP BY e.data.department PROJECT INTO {department: e.data.department, count: COUNT(), avgSalary: AVG(e.data.salary)}`,
		`FROM e IN events PROJECT INTO {total: SUM(e.data.amount), n: COUNT()}`,
		`FROM e IN events GROUP BY e.type HAVING COUNT() > 1 AND e.type != "x" PROJECT INTO {type: e.type, n: COUNT()} ORDER BY COUNT() DESC`,
		`FROM t IN eventtypes PROJECT INTO {type: t, upper: UPPER(t)}`,
		`FROM s IN subjects WHERE STARTSWITH(s, "companies") PROJECT INTO {subject: s}`,
		`FROM e IN events WHERE e.data.tags CONTAINS "vip" PROJECT INTO {y: YEAR(e.time), r: ROUND(e.data.v, 2)}`,
		`FROM e IN events PROJECT INTO {v: IF(e.data.ok, "yes", "no"), c: COALESCE(e.data.name, "anon")} ORDER BY e.time TOP 3`,
		`FROM E IN Events PROJECT INTO {id: E.id}`,
	}

	for _, text := range queries {
		t.Run(text, func(t *testing.T) {
			q, err := analyze(t, text, nil)
			require.NoError(t, err)
			assert.True(t, q.Analyzed())
		})
	}
}

func TestAnalyze_AnnotatesTypes(t *testing.T) {
	q, err := analyze(t, `FROM e IN events GROUP BY e.data.department PROJECT INTO {department: e.data.department, count: COUNT(), avgSalary: AVG(e.data.salary)}`, nil)
	require.NoError(t, err)

	assert.True(t, q.Aggregating())
	result := q.ResultType()
	require.Equal(t, eventql.TypeObject, result.Kind)
	assert.Equal(t, eventql.TypeUnknown, result.Fields["department"].Kind)
	assert.Equal(t, eventql.TypeNumber, result.Fields["count"].Kind)
	assert.Equal(t, eventql.TypeNumber, result.Fields["avgSalary"].Kind)

	count := q.Project.Fields[1].Value
	assert.Equal(t, eventql.TypeAggregate, count.Type().Kind)
	assert.Equal(t, eventql.TypeNumber, count.Type().Base().Kind)

	q, err = analyze(t, `FROM e IN events WHERE e.type == "a" PROJECT INTO {id: e.id}`, nil)
	require.NoError(t, err)
	assert.False(t, q.Aggregating())
	assert.Equal(t, eventql.TypeBool, q.Where.Type().Kind)
	assert.Equal(t, eventql.TypeString, q.Project.Fields[0].Value.Type().Kind)
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		grouping bool
	}{
		{"unknown identifier", `FROM e IN events WHERE x.type == "a" PROJECT INTO {id: e.id}`, false},
		{"unknown event field", `FROM e IN events PROJECT INTO {v: e.foo}`, false},
		{"member on string", `FROM e IN events PROJECT INTO {v: e.type.length}`, false},
		{"member on catalog string", `FROM t IN eventtypes PROJECT INTO {v: t.name}`, false},
		{"string compared to number", `FROM e IN events WHERE e.type == 1 PROJECT INTO {id: e.id}`, false},
		{"ordering on bool", `FROM e IN events WHERE true < false PROJECT INTO {id: e.id}`, false},
		{"arithmetic on string", `FROM e IN events PROJECT INTO {v: e.id + 1}`, false},
		{"logic on number", `FROM e IN events WHERE 1 AND e.data.ok PROJECT INTO {id: e.id}`, false},
		{"where not bool", `FROM e IN events WHERE e.type PROJECT INTO {id: e.id}`, false},
		{"contains on number", `FROM e IN events WHERE 3 CONTAINS 1 PROJECT INTO {id: e.id}`, false},
		{"unknown source", `FROM e IN whatever PROJECT INTO {id: e.id}`, false},
		{"unknown function", `FROM e IN events PROJECT INTO {v: FOO(e.id)}`, false},
		{"scalar arity", `FROM e IN events PROJECT INTO {v: UPPER(e.id, e.type)}`, false},
		{"scalar argument type", `FROM e IN events PROJECT INTO {v: UPPER(1)}`, false},
		{"count takes no argument", `FROM e IN events PROJECT INTO {n: COUNT(e.id)}`, false},
		{"avg of string", `FROM e IN events PROJECT INTO {n: AVG(e.type)}`, false},
		{"aggregate in where", `FROM e IN events WHERE COUNT() > 1 PROJECT INTO {n: COUNT()}`, true},
		{"aggregate in group by", `FROM e IN events GROUP BY COUNT() PROJECT INTO {n: COUNT()}`, true},
		{"nested aggregate", `FROM e IN events PROJECT INTO {n: SUM(COUNT())}`, true},
		{"non-key projection", `FROM e IN events GROUP BY e.data.department PROJECT INTO {name: e.data.name, n: COUNT()}`, true},
		{"mixed without group by", `FROM e IN events PROJECT INTO {id: e.id, n: COUNT()}`, true},
		{"composite aggregate field", `FROM e IN events GROUP BY e.type PROJECT INTO {type: e.type, n: COUNT() * 2}`, true},
		{"having references non-key", `FROM e IN events GROUP BY e.type HAVING e.data.x > 1 PROJECT INTO {type: e.type}`, true},
		{"order references non-key", `FROM e IN events GROUP BY e.type PROJECT INTO {type: e.type} ORDER BY e.time`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := analyze(t, tt.text, nil)
			require.Error(t, err)
			assert.False(t, q.Analyzed())

			var aerr *eventql.AnalysisError
			require.True(t, errors.As(err, &aerr))

			var gerr *eventql.GroupingError
			var terr *eventql.TypeError
			if tt.grouping {
				assert.True(t, errors.As(err, &gerr), "want GroupingError, got %v", err)
			} else {
				assert.True(t, errors.As(err, &terr), "want TypeError, got %v", err)
				assert.False(t, errors.As(err, &gerr), "unexpected GroupingError: %v", err)
			}
		})
	}
}

func TestAnalyze_CollectsAllErrors(t *testing.T) {
	_, err := analyze(t, `FROM e IN events WHERE e.type == 1 GROUP BY e.type PROJECT INTO {v: e.foo, name: e.data.name, n: COUNT()}`, nil)
	require.Error(t, err)

	var aerr *eventql.AnalysisError
	require.True(t, errors.As(err, &aerr))
	assert.GreaterOrEqual(t, len(aerr.Errors), 3)

	var terr *eventql.TypeError
	var gerr *eventql.GroupingError
	assert.True(t, errors.As(err, &terr))
	assert.True(t, errors.As(err, &gerr))
	assert.Contains(t, err.Error(), "analysis errors")
}

func TestAnalyze_HavingNeedsAggregation(t *testing.T) {
	q, err := eventql.Parse(`FROM e IN events PROJECT INTO {id: e.id}`)
	require.NoError(t, err)
	q.Having, err = eventql.ParseExpr(`e.type == "a"`)
	require.NoError(t, err)

	err = eventql.Analyze(q, nil)
	var gerr *eventql.GroupingError
	assert.True(t, errors.As(err, &gerr))
}

func TestAnalyze_Schema(t *testing.T) {
	schema, err := eventql.NewSchema(map[string]string{
		"salary":       "number",
		"address":      "object",
		"address.city": "string",
		"tags":         "list",
	})
	require.NoError(t, err)
	assert.Equal(t, 4, schema.Len())

	q, err := analyze(t, `FROM e IN events PROJECT INTO {city: e.data.address.city, salary: e.data.salary, other: e.data.other}`, schema)
	require.NoError(t, err)
	fields := q.ResultType().Fields
	assert.Equal(t, eventql.TypeString, fields["city"].Kind)
	assert.Equal(t, eventql.TypeNumber, fields["salary"].Kind)
	assert.Equal(t, eventql.TypeUnknown, fields["other"].Kind)

	_, err = analyze(t, `FROM e IN events WHERE e.data.salary == "high" PROJECT INTO {id: e.id}`, schema)
	var terr *eventql.TypeError
	assert.True(t, errors.As(err, &terr))

	_, err = analyze(t, `FROM e IN events WHERE e.data.salary.amount > 1 PROJECT INTO {id: e.id}`, schema)
	assert.True(t, errors.As(err, &terr))
}

func TestNewSchema_Errors(t *testing.T) {
	_, err := eventql.NewSchema(map[string]string{"a": "decimal"})
	assert.Error(t, err)

	_, err = eventql.NewSchema(map[string]string{"a": "number", "a.b": "string"})
	assert.Error(t, err)

	_, err = eventql.NewSchema(map[string]string{"a..b": "string"})
	assert.Error(t, err)
}

func TestLookupFunction(t *testing.T) {
	fn, ok := eventql.LookupFunction("avg")
	require.True(t, ok)
	assert.True(t, fn.Aggregate)
	minArgs, maxArgs := fn.Arity()
	assert.Equal(t, 1, minArgs)
	assert.Equal(t, 1, maxArgs)

	fn, ok = eventql.LookupFunction("Round")
	require.True(t, ok)
	assert.False(t, fn.Aggregate)
	minArgs, maxArgs = fn.Arity()
	assert.Equal(t, 1, minArgs)
	assert.Equal(t, 2, maxArgs)

	assert.True(t, eventql.IsAggregate("unique"))
	assert.False(t, eventql.IsAggregate("upper"))
	assert.Contains(t, eventql.FunctionNames(), "MEDIAN")
}

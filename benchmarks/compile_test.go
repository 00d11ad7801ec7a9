package benchmarks

import (
	"testing"

	"github.com/randalmurphal/vigil/pkg/vigil"
	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
)

const groupingQuery = `
	FROM e IN events
	WHERE e.type == "employee-1" AND e.data.salary > 100
	GROUP BY e.data.department
	HAVING COUNT() > 1
	PROJECT INTO {department: e.data.department, n: COUNT(), avg: AVG(e.data.salary), p50: MEDIAN(e.data.salary)}
	ORDER BY COUNT() DESC
	TOP 3`

// BenchmarkParse parses a query with every clause.
func BenchmarkParse(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := eventql.Parse(groupingQuery); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCompile parses, analyzes and plans the same query.
func BenchmarkCompile(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := vigil.Compile(groupingQuery, nil); err != nil {
			b.Fatal(err)
		}
	}
}

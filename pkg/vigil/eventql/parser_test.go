package eventql_test

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/vigil/pkg/vigil/eventql"
	"github.com/randalmurphal/vigil/pkg/vigil/value"
)

func TestParse_Canonical(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "minimal",
			text: `FROM e IN events PROJECT INTO {id: e.id}`,
			want: `FROM e IN events PROJECT INTO {id: e.id}`,
		},
		{
			name: "lowercase keywords and single quotes",
			text: `from e in 'companies/acme' where e.data.age >= 18 and not e.data.banned project into {name: e.data.name} order by e.time desc top 5`,
			want: `FROM e IN "companies/acme" WHERE e.data.age >= 18 AND NOT e.data.banned PROJECT INTO {name: e.data.name} ORDER BY e.time DESC TOP 5`,
		},
		{
			name: "grouping with having",
			text: `FROM e IN events GROUP BY e.data.department HAVING count() > 1 PROJECT INTO {department: e.data.department, count: count(), avgSalary: avg(e.data.salary)}`,
			want: `FROM e IN events GROUP BY e.data.department HAVING COUNT() > 1 PROJECT INTO {department: e.data.department, count: COUNT(), avgSalary: AVG(e.data.salary)}`,
		},
		{
			name: "quoted field names and trailing comma",
			text: `FROM e IN events PROJECT INTO {"first name": e.data.n, 'top': 1,}`,
			want: `FROM e IN events PROJECT INTO {"first name": e.data.n, top: 1}`,
		},
		{
			name: "ascending order is explicit",
			text: `FROM e IN events PROJECT INTO {t: e.time} ORDER BY e.time`,
			want: `FROM e IN events PROJECT INTO {t: e.time} ORDER BY e.time ASC`,
		},
		{
			name: "multiple group keys",
			text: "FROM e IN events\nGROUP BY e.type, e.subject\nPROJECT INTO {type: e.type, subject: e.subject, n: COUNT()}",
			want: `FROM e IN events GROUP BY e.type, e.subject PROJECT INTO {type: e.type, subject: e.subject, n: COUNT()}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := eventql.Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, q.String())
		})
	}
}

func TestParse_Structure(t *testing.T) {
	q, err := eventql.Parse(`FROM e IN "a/b" WHERE e.type == "x" PROJECT INTO {s: e.subject} TOP 3`)
	require.NoError(t, err)

	assert.Equal(t, "e", q.Binding)
	assert.Equal(t, eventql.SourceSubject, q.Source.Kind)
	assert.Equal(t, "a/b", q.Source.Path)
	require.NotNil(t, q.Top)
	assert.Equal(t, 3, *q.Top)

	where, ok := q.Where.(*eventql.Binary)
	require.True(t, ok)
	assert.Equal(t, eventql.OpEq, where.Op)

	member, ok := where.Left.(*eventql.MemberAccess)
	require.True(t, ok)
	assert.Equal(t, "type", member.Field)
	_, ok = member.Target.(*eventql.Identifier)
	assert.True(t, ok)

	require.Len(t, q.Project.Fields, 1)
	assert.Equal(t, "s", q.Project.Fields[0].Name)
}

func TestParseExpr_Precedence(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"1 + 2 * 3", "1 + 2 * 3"},
		{"(1 + 2) * 3", "(1 + 2) * 3"},
		{"1 - 2 - 3", "1 - 2 - 3"},
		{"1 - (2 - 3)", "1 - (2 - 3)"},
		{"a OR b AND c", "a OR b AND c"},
		{"(a OR b) AND c", "(a OR b) AND c"},
		{"a XOR b OR c", "a XOR b OR c"},
		{"!a", "NOT a"},
		{"NOT (a AND b)", "NOT (a AND b)"},
		{"-5", "-5"},
		{"-(5)", "-(5)"},
		{"-(-5)", "-(-5)"},
		{"-e.data.x", "-e.data.x"},
		{"(-1).x", "(-1).x"},
		{"3 * -2", "3 * -2"},
		{"x.tags CONTAINS 'a'", `x.tags CONTAINS "a"`},
		{"[1, 'a', true, null]", `[1, "a", true, null]`},
		{"{a: [1, 2], b: {c: 1}}", "{a: [1, 2], b: {c: 1}}"},
		{"lower(e.type) == 'x'", `LOWER(e.type) == "x"`},
		{"(a == b) == c", "(a == b) == c"},
		{`"tab\there"`, `"tab\there"`},
		{"1.5e3", "1500"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			e, err := eventql.ParseExpr(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.String())
		})
	}
}

func TestParseExpr_Shapes(t *testing.T) {
	e, err := eventql.ParseExpr("1 + 2 * 3")
	require.NoError(t, err)
	add, ok := e.(*eventql.Binary)
	require.True(t, ok)
	assert.Equal(t, eventql.OpAdd, add.Op)
	mul, ok := add.Right.(*eventql.Binary)
	require.True(t, ok)
	assert.Equal(t, eventql.OpMul, mul.Op)

	e, err = eventql.ParseExpr("-5")
	require.NoError(t, err)
	lit, ok := e.(*eventql.Literal)
	require.True(t, ok)
	n, _ := lit.Value.AsNumber()
	assert.Equal(t, -5.0, n)

	e, err = eventql.ParseExpr("a.b.c")
	require.NoError(t, err)
	outer, ok := e.(*eventql.MemberAccess)
	require.True(t, ok)
	assert.Equal(t, "c", outer.Field)
	inner, ok := outer.Target.(*eventql.MemberAccess)
	require.True(t, ok)
	assert.Equal(t, "b", inner.Field)
}

func TestParse_RoundTrip(t *testing.T) {
	queries := []string{
		`FROM e IN events PROJECT INTO {id: e.id}`,
		`FROM e IN events WHERE e.data.a - (e.data.b - 1) > -(2) OR e.data.c XOR NOT e.data.d PROJECT INTO {x: [1, -2.5, "q\"uote"]}`,
		`FROM e IN events GROUP BY e.data.k HAVING AVG(e.data.v) >= 10 PROJECT INTO {k: e.data.k, u: UNIQUE(e.data.v)} ORDER BY COUNT() DESC TOP 10`,
		`FROM s IN subjects PROJECT INTO {subject: s}`,
		`FROM e IN "companies/acme" PROJECT INTO {"odd key": (-1).x, y: IF(e.data.ok, 1, 2)}`,
		`FROM e IN events WHERE e.data.tags CONTAINS "x" PROJECT INTO {n: e.data.n * (1 + 2)}`,
	}

	for _, text := range queries {
		t.Run(text, func(t *testing.T) {
			q1, err := eventql.Parse(text)
			require.NoError(t, err)
			q2, err := eventql.Parse(q1.String())
			require.NoError(t, err)
			assert.Equal(t, q1.String(), q2.String())
			assert.Equal(t, shape(q1), shape(q2), "printing must not change the tree")
		})
	}
}

// shape flattens q into one line per clause and node, leaving out positions.
func shape(q *eventql.Query) []string {
	out := []string{fmt.Sprintf("from %s in %d %q %q", q.Binding, q.Source.Kind, q.Source.Name, q.Source.Path)}
	clause := func(name string, e eventql.Expr) {
		if e == nil {
			return
		}
		out = append(out, name)
		eventql.Walk(e, func(e eventql.Expr) bool {
			out = append(out, nodeShape(e))
			return true
		})
	}
	clause("where", q.Where)
	for _, k := range q.GroupBy {
		clause("group", k)
	}
	clause("having", q.Having)
	clause("project", q.Project)
	if q.OrderBy != nil {
		clause(fmt.Sprintf("order desc=%t", q.OrderBy.Desc), q.OrderBy.Expr)
	}
	if q.Top != nil {
		out = append(out, fmt.Sprintf("top %d", *q.Top))
	}
	return out
}

func nodeShape(e eventql.Expr) string {
	switch n := e.(type) {
	case *eventql.Identifier:
		return "ident " + n.Name
	case *eventql.MemberAccess:
		return "member " + n.Field
	case *eventql.Literal:
		if num, ok := n.Value.AsNumber(); ok {
			return "number " + strconv.FormatFloat(num, 'g', -1, 64)
		}
		return fmt.Sprintf("literal %s %s", n.Value.Kind(), n.Value.String())
	case *eventql.Binary:
		return "binary " + n.Op.String()
	case *eventql.Unary:
		return "unary " + n.Op.String()
	case *eventql.Call:
		return fmt.Sprintf("call %s/%d", strings.ToUpper(n.Name), len(n.Args))
	case *eventql.ObjectConstruct:
		names := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			names[i] = f.Name
		}
		return "object " + strings.Join(names, ",")
	case *eventql.ListConstruct:
		return fmt.Sprintf("list %d", len(n.Items))
	default:
		return fmt.Sprintf("%T", e)
	}
}

func TestShape_DetectsLostStructure(t *testing.T) {
	a, err := eventql.Parse(`FROM e IN events PROJECT INTO {x: -(1)}`)
	require.NoError(t, err)
	b, err := eventql.Parse(`FROM e IN events PROJECT INTO {x: -1}`)
	require.NoError(t, err)
	assert.NotEqual(t, shape(a), shape(b))

	lit, ok := b.Project.Fields[0].Value.(*eventql.Literal)
	require.True(t, ok)
	assert.True(t, value.Equal(value.Number(-1), lit.Value))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantPos eventql.Pos
		wantTok string
	}{
		{
			name:    "duplicate field",
			text:    `FROM e IN events PROJECT INTO {a: 1, a: 2}`,
			wantPos: eventql.Pos{Line: 1, Column: 38},
			wantTok: "a",
		},
		{
			name:    "missing where expression",
			text:    `FROM e IN events WHERE PROJECT INTO {}`,
			wantPos: eventql.Pos{Line: 1, Column: 24},
			wantTok: "PROJECT",
		},
		{
			name:    "missing project",
			text:    `FROM e IN events`,
			wantPos: eventql.Pos{Line: 1, Column: 17},
		},
		{
			name:    "position on later line",
			text:    "FROM e IN events\nWHERE e.x ==\n  PROJECT INTO {}",
			wantPos: eventql.Pos{Line: 3, Column: 3},
			wantTok: "PROJECT",
		},
		{
			name:    "chained comparison",
			text:    `FROM e IN events WHERE 1 < 2 < 3 PROJECT INTO {}`,
			wantPos: eventql.Pos{Line: 1, Column: 30},
			wantTok: "<",
		},
		{
			name:    "unexpected character",
			text:    `FROM e IN events WHERE e.a # 1 PROJECT INTO {}`,
			wantPos: eventql.Pos{Line: 1, Column: 28},
			wantTok: "#",
		},
		{
			name:    "unterminated string",
			text:    `FROM e IN events WHERE e.a == "abc PROJECT INTO {}`,
			wantPos: eventql.Pos{Line: 1, Column: 31},
			wantTok: `"`,
		},
		{
			name:    "reserved binding",
			text:    `FROM where IN events PROJECT INTO {}`,
			wantPos: eventql.Pos{Line: 1, Column: 6},
			wantTok: "where",
		},
		{
			name:    "negative top",
			text:    `FROM e IN events PROJECT INTO {} TOP -1`,
			wantPos: eventql.Pos{Line: 1, Column: 38},
			wantTok: "-",
		},
		{
			name:    "trailing garbage",
			text:    `FROM e IN events PROJECT INTO {} extra`,
			wantPos: eventql.Pos{Line: 1, Column: 34},
			wantTok: "extra",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eventql.Parse(tt.text)
			require.Error(t, err)

			var perr *eventql.ParseError
			require.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
			assert.Equal(t, tt.wantPos, perr.Pos)
			assert.Equal(t, tt.wantTok, perr.Token)
		})
	}
}

/*
Package eventql parses and statically analyzes EventQL queries.

# Overview

EventQL selects a data source, optionally filters and groups it, and projects
each result into an object:

	FROM e IN events
	WHERE e.type == "user-created"
	GROUP BY e.data.department
	PROJECT INTO {department: e.data.department, count: COUNT(), avgSalary: AVG(e.data.salary)}

Parse turns text into a *Query. Analyze type-checks the query, annotates
every expression with its static Type and rejects projections that are
illegal for the query's grouping. Both are pure: nothing here reads events.

# Grammar

	Query      := FROM ident IN (ident | string) [WHERE Expr]
	              [GROUP BY Expr {, Expr} [HAVING Expr]]
	              PROJECT INTO Object [ORDER BY Expr [ASC | DESC]] [TOP number]
	Expr       := Or
	Or         := Xor {OR Xor}
	Xor        := And {XOR And}
	And        := Cmp {AND Cmp}
	Cmp        := Add [(== | != | < | <= | > | >= | CONTAINS) Add]
	Add        := Mul {(+ | -) Mul}
	Mul        := Unary {(* | /) Unary}
	Unary      := (NOT | ! | -) Unary | Postfix
	Postfix    := Primary {. ident}
	Primary    := ident | ident ( [Expr {, Expr}] ) | string | number
	            | true | false | null | ( Expr ) | Object | [ [Expr {, Expr}] ]
	Object     := { [Field {, Field} [,]] }
	Field      := (ident | string) : Expr

Keywords and function names are case-insensitive. Strings use double or
single quotes with backslash escapes.

# Sources

	events       every event; the binding is the event record
	eventtypes   the distinct event types; the binding is a string
	subjects     the distinct subjects; the binding is a string
	"a/b"        events whose subject is a/b or below it

The event record has string fields id, type, subject, time, source,
specversion and datacontenttype, plus data. The type of data is Unknown
unless a Schema declares payload paths.

# Aggregates

COUNT(), SUM, AVG, MIN, MAX, MEDIAN, STDDEV, VARIANCE and UNIQUE may appear
as PROJECT INTO fields, and inside HAVING or ORDER BY of an aggregating
query. With GROUP BY every projected field must be a key expression or an
aggregate call.
*/
package eventql

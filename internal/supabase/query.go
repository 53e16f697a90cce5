package supabase

import (
	"fmt"
	"net/url"
	"strings"
)

// Query is a PostgREST table request: column projection plus row filters.
type Query struct {
	table  string
	params url.Values
}

func From(table string) *Query {
	return &Query{table: table, params: url.Values{}}
}

func (q *Query) Table() string { return q.table }

func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	return q
}

func (q *Query) Eq(column string, value any) *Query {
	q.params.Add(column, "eq."+fmt.Sprint(value))
	return q
}

func (q *Query) Gte(column string, value any) *Query {
	q.params.Add(column, "gte."+fmt.Sprint(value))
	return q
}

func (q *Query) Lte(column string, value any) *Query {
	q.params.Add(column, "lte."+fmt.Sprint(value))
	return q
}

func (q *Query) In(column string, values []int64) *Query {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	q.params.Add(column, "in.("+strings.Join(parts, ",")+")")
	return q
}

func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

func (q *Query) Encode() string {
	return q.params.Encode()
}

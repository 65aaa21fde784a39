// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Query builds a PostgREST request against one table.
type Query struct {
	client  *Client
	table   string
	columns string
	params  url.Values
	orders  []string
	single  bool
}

// From starts a query on table.
func (c *Client) From(table string) *Query {
	return &Query{client: c, table: table, columns: "*", params: url.Values{}}
}

// Select sets the returned columns.
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq filters column = value.
func (q *Query) Eq(column string, value any) *Query { return q.filter(column, "eq", value) }

// Neq filters column <> value.
func (q *Query) Neq(column string, value any) *Query { return q.filter(column, "neq", value) }

// Gte filters column >= value.
func (q *Query) Gte(column string, value any) *Query { return q.filter(column, "gte", value) }

// Lt filters column < value.
func (q *Query) Lt(column string, value any) *Query { return q.filter(column, "lt", value) }

// Is filters column IS value (null, true, false).
func (q *Query) Is(column string, value any) *Query { return q.filter(column, "is", value) }

func (q *Query) filter(column, op string, value any) *Query {
	q.params.Add(column, op+"."+fmt.Sprint(value))
	return q
}

// Order sorts by column.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	return q
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Single expects exactly one row; zero rows yield ErrNotFound.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

func (q *Query) url(extra url.Values) string {
	v := url.Values{}
	for k, vals := range q.params {
		v[k] = append([]string(nil), vals...)
	}
	for k, vals := range extra {
		v[k] = vals
	}
	if len(q.orders) > 0 {
		v.Set("order", strings.Join(q.orders, ","))
	}
	u := q.client.baseURL + "/rest/v1/" + url.PathEscape(q.table)
	if enc := v.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

func (q *Query) header(prefer string) http.Header {
	h := http.Header{}
	if q.single {
		h.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if prefer != "" {
		h.Set("Prefer", prefer)
	}
	return h
}

// Execute runs a select and decodes the rows into out.
func (q *Query) Execute(ctx context.Context, out any) error {
	resp, err := q.client.do(ctx, "select:"+q.table, http.MethodGet,
		q.url(url.Values{"select": {q.columns}}), nil, q.header(""))
	if err != nil {
		return err
	}
	return decode(resp.body, out)
}

// Insert inserts row (a struct, map or slice of them) and decodes the
// stored representation into out when out is non-nil.
func (q *Query) Insert(ctx context.Context, row any, out any) error {
	return q.write(ctx, "insert:"+q.table, row, nil, out, "")
}

// Upsert inserts row or merges it into the existing row conflicting on
// onConflict (comma-separated columns).
func (q *Query) Upsert(ctx context.Context, row any, onConflict string, out any) error {
	var extra url.Values
	if onConflict != "" {
		extra = url.Values{"on_conflict": {onConflict}}
	}
	return q.write(ctx, "upsert:"+q.table, row, extra, out, "resolution=merge-duplicates")
}

func (q *Query) write(ctx context.Context, op string, row any, extra url.Values, out any, resolution string) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("supabase: encode %s: %w", op, err)
	}
	ret := "return=minimal"
	if out != nil {
		ret = "return=representation"
	}
	prefer := ret
	if resolution != "" {
		prefer = resolution + "," + ret
	}
	resp, err := q.client.do(ctx, op, http.MethodPost, q.url(extra), body, q.header(prefer))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(resp.body, out)
}

func decode(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("supabase: decode response: %w", err)
	}
	return nil
}

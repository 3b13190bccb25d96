// SPDX-License-Identifier: MIT
package reso

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Query builds an OData query string piece by piece. Filter clauses are
// joined with " and "; everything is percent-encoded once at Encode time.
type Query struct {
	Resource string
	filters  []string
	expand   []string
	sel      []string
	orderBy  string
	top      int
}

func NewQuery(resource string) *Query {
	return &Query{Resource: resource}
}

func (q *Query) FilterEq(field, value string) *Query {
	q.filters = append(q.filters, fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''")))
	return q
}

func (q *Query) FilterEqBool(field string, value bool) *Query {
	q.filters = append(q.filters, fmt.Sprintf("%s eq %t", field, value))
	return q
}

// FilterGtTime adds a strict greater-than clause in ISO-8601 UTC.
func (q *Query) FilterGtTime(field string, t time.Time) *Query {
	q.filters = append(q.filters, fmt.Sprintf("%s gt %s", field, t.UTC().Format("2006-01-02T15:04:05Z")))
	return q
}

func (q *Query) Expand(collections ...string) *Query {
	q.expand = append(q.expand, collections...)
	return q
}

func (q *Query) Select(fields ...string) *Query {
	q.sel = append(q.sel, fields...)
	return q
}

func (q *Query) OrderBy(clause string) *Query {
	q.orderBy = clause
	return q
}

func (q *Query) Top(n int) *Query {
	q.top = n
	return q
}

// Encode renders the relative path with its encoded query string.
func (q *Query) Encode() string {
	v := url.Values{}
	if len(q.filters) > 0 {
		v.Set("$filter", strings.Join(q.filters, " and "))
	}
	if len(q.expand) > 0 {
		v.Set("$expand", strings.Join(q.expand, ","))
	}
	if len(q.sel) > 0 {
		v.Set("$select", strings.Join(q.sel, ","))
	}
	if q.orderBy != "" {
		v.Set("$orderby", q.orderBy)
	}
	if q.top > 0 {
		v.Set("$top", fmt.Sprintf("%d", q.top))
	}
	if len(v) == 0 {
		return "/" + q.Resource
	}
	return "/" + q.Resource + "?" + v.Encode()
}

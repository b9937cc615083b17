// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package account

import (
	"strconv"
	"time"

	"github.com/samber/oops"
)

// Field names an account attribute that queries may filter or sort on.
type Field string

// Queryable fields.
const (
	FieldEmail     Field = "email"
	FieldName      Field = "name"
	FieldIsActive  Field = "is_active"
	FieldCreatedAt Field = "created_at"
)

// Op is a filter comparison operator.
type Op string

// Filter operators.
const (
	OpEq       Op = "eq"
	OpNe       Op = "ne"
	OpContains Op = "contains"
	OpLt       Op = "lt"
	OpGt       Op = "gt"
)

// Paging limits.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindBool
	kindTime
)

var fieldKinds = map[Field]fieldKind{
	FieldEmail:     kindString,
	FieldName:      kindString,
	FieldIsActive:  kindBool,
	FieldCreatedAt: kindTime,
}

var kindOps = map[fieldKind]map[Op]bool{
	kindString: {OpEq: true, OpNe: true, OpContains: true},
	kindBool:   {OpEq: true, OpNe: true},
	kindTime:   {OpEq: true, OpNe: true, OpLt: true, OpGt: true},
}

// Filter restricts a listing to accounts where Field Op Value holds.
// Value is the textual form; booleans use strconv syntax and times RFC 3339.
type Filter struct {
	Field Field
	Op    Op
	Value string
}

// SortKey orders a listing by Field.
type SortKey struct {
	Field Field
	Desc  bool
}

// Query is a typed listing descriptor.
type Query struct {
	Filters  []Filter
	Sort     []SortKey
	Page     int
	PageSize int
}

// Normalized returns q with paging defaults applied.
func (q Query) Normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset returns the number of records skipped before the current page.
func (q Query) Offset() int {
	n := q.Normalized()
	return (n.Page - 1) * n.PageSize
}

// Validate rejects unknown fields, operators that do not apply to a field,
// and values that do not parse for the field's type.
func (q Query) Validate() error {
	for i, f := range q.Filters {
		kind, ok := fieldKinds[f.Field]
		if !ok {
			return invalidQuery(i, "unknown filter field %q", f.Field)
		}
		if !kindOps[kind][f.Op] {
			return invalidQuery(i, "operator %q not supported for field %q", f.Op, f.Field)
		}
		if _, err := f.TypedValue(); err != nil {
			return invalidQuery(i, "invalid value %q for field %q", f.Value, f.Field)
		}
	}
	for _, s := range q.Sort {
		if _, ok := fieldKinds[s.Field]; !ok {
			return oops.Code(CodeInvalidQuery).With("sort", string(s.Field)).Errorf("unknown sort field %q", s.Field)
		}
	}
	return nil
}

// TypedValue parses Value according to the field's type.
func (f Filter) TypedValue() (any, error) {
	switch fieldKinds[f.Field] {
	case kindBool:
		return strconv.ParseBool(f.Value)
	case kindTime:
		return time.Parse(time.RFC3339, f.Value)
	default:
		return f.Value, nil
	}
}

// Page is one page of a listing.
type Page struct {
	Items []View   `json:"results"`
	Meta  PageMeta `json:"meta"`
}

// PageMeta describes where a page sits in the full result set.
type PageMeta struct {
	Current  int `json:"current"`
	PageSize int `json:"pageSize"`
	Pages    int `json:"pages"`
	Total    int `json:"total"`
}

func newPageMeta(q Query, total int) PageMeta {
	pages := 0
	if total > 0 {
		pages = (total + q.PageSize - 1) / q.PageSize
	}
	return PageMeta{Current: q.Page, PageSize: q.PageSize, Pages: pages, Total: total}
}

func invalidQuery(index int, format string, args ...any) error {
	return oops.Code(CodeInvalidQuery).With("filter_index", index).Errorf(format, args...)
}

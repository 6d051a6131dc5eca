// Package query turns edits of filter, sort and page parameters into remote collection
// fetches with debouncing, duplicate suppression and last-request-wins delivery.
package query

import (
	"context"
	"errors"
	"maps"
	"strconv"
)

// Well-known filter keys. They double as query parameter names.
const (
	FilterCategory = "category"
	FilterSearch   = "search"
	FilterActive   = "isActive"
	FilterStatus   = "status"
)

// ErrInvalidPage is returned for page numbers or sizes below 1.
var ErrInvalidPage = errors.New("page number and size must be at least 1")

// Direction is a sort direction.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Filters maps named predicates to values. An absent key means no constraint.
type Filters map[string]string

// ActiveFilter renders a boolean for the isActive predicate.
func ActiveFilter(active bool) string {
	return strconv.FormatBool(active)
}

// Merge returns f overlaid with partial. Empty values in partial remove the key.
func (f Filters) Merge(partial Filters) Filters {
	out := make(Filters, len(f)+len(partial))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range partial {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Sort orders a collection.
type Sort struct {
	Field     string
	Direction Direction
}

// PageRequest selects one page of a collection.
type PageRequest struct {
	Number int
	Size   int
}

// State is the full set of parameters of one fetch.
type State struct {
	Filters Filters
	Sort    Sort
	Page    PageRequest
}

// Equal reports value equality; nil and empty filters are equal.
func (s State) Equal(o State) bool {
	return s.Sort == o.Sort && s.Page == o.Page && maps.Equal(s.Filters, o.Filters)
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	c := s
	c.Filters = maps.Clone(s.Filters)
	if c.Filters == nil {
		c.Filters = Filters{}
	}
	return c
}

// Page is one resolved page of a collection. Build it with NewPage.
type Page[T any] struct {
	Items      []T
	PageNumber int
	PageSize   int
	TotalItems int
	TotalPages int
}

// NewPage derives the page totals from the item count.
func NewPage[T any](items []T, pageNumber, pageSize, totalItems int) Page[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	if totalItems < 0 {
		totalItems = 0
	}
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		PageNumber: pageNumber,
		PageSize:   pageSize,
		TotalItems: totalItems,
		TotalPages: (totalItems + pageSize - 1) / pageSize,
	}
}

// Fetcher resolves a query against the remote collection.
type Fetcher[T any] interface {
	Fetch(ctx context.Context, q State) (Page[T], error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T any] func(ctx context.Context, q State) (Page[T], error)

// Fetch calls f.
func (f FetcherFunc[T]) Fetch(ctx context.Context, q State) (Page[T], error) {
	return f(ctx, q)
}

// Snapshot is the single current result of a controller.
type Snapshot[T any] struct {
	// Query is the current parameter state, possibly not fetched yet.
	Query State
	// Page is the last successfully fetched page; nil before the first success.
	Page *Page[T]
	// Err is the failure of the latest applied fetch, nil after a success.
	Err error
	// Pending is true while the latest issued fetch has not resolved.
	Pending bool
	// Seq is the sequence number of the latest issued fetch.
	Seq uint64
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/capitalize-ai/agent-console/internal/query"
)

// CollectionFetcher resolves query states against a paginated list endpoint.
type CollectionFetcher[T any] struct {
	client   *Client
	path     string
	itemsKey string
}

// NewCollectionFetcher returns a fetcher for path whose list responses carry
// items under itemsKey (or "items").
func NewCollectionFetcher[T any](client *Client, path, itemsKey string) *CollectionFetcher[T] {
	return &CollectionFetcher[T]{client: client, path: path, itemsKey: itemsKey}
}

// Fetch implements query.Fetcher.
func (f *CollectionFetcher[T]) Fetch(ctx context.Context, q query.State) (query.Page[T], error) {
	body, err := f.client.request(ctx, http.MethodGet, at(f.path), EncodeQuery(q), nil)
	if err != nil {
		return query.Page[T]{}, err
	}
	return decodePage[T](body, f.itemsKey, q.Page)
}

// EncodeQuery renders a query state as list endpoint parameters.
// Filters with empty values are omitted.
func EncodeQuery(q query.State) url.Values {
	v := url.Values{}
	if q.Page.Number > 0 {
		v.Set("page", strconv.Itoa(q.Page.Number))
	}
	if q.Page.Size > 0 {
		v.Set("pageSize", strconv.Itoa(q.Page.Size))
	}
	if q.Sort.Field != "" {
		v.Set("sortField", q.Sort.Field)
		if q.Sort.Direction != "" {
			v.Set("sortDirection", string(q.Sort.Direction))
		}
	}
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if val := q.Filters[k]; val != "" {
			v.Set(k, val)
		}
	}
	return v
}

// decodePage accepts {"<itemsKey>"|"items": [...], "pagination": {...}} or a bare array.
// Missing totals fall back to the item count.
func decodePage[T any](body []byte, itemsKey string, req query.PageRequest) (query.Page[T], error) {
	if !gjson.ValidBytes(body) {
		return query.Page[T]{}, fmt.Errorf("decode page: invalid JSON")
	}
	root := gjson.ParseBytes(body)

	var raw gjson.Result
	switch {
	case root.IsArray():
		raw = root
	case itemsKey != "" && root.Get(itemsKey).IsArray():
		raw = root.Get(itemsKey)
	case root.Get("items").IsArray():
		raw = root.Get("items")
	default:
		return query.Page[T]{}, fmt.Errorf("decode page: no %q array in response", itemsKey)
	}

	var items []T
	if err := json.Unmarshal([]byte(raw.Raw), &items); err != nil {
		return query.Page[T]{}, fmt.Errorf("decode page items: %w", err)
	}

	// a bare array is the whole collection on one page
	if root.IsArray() {
		return query.NewPage(items, 1, max(len(items), 1), len(items)), nil
	}

	pageNumber, pageSize := req.Number, req.Size
	if pageNumber < 1 {
		pageNumber = 1
	}
	if pageSize < 1 {
		pageSize = max(len(items), 1)
	}
	total := len(items)
	if p := root.Get("pagination"); p.Exists() {
		if n := p.Get("page"); n.Int() > 0 {
			pageNumber = int(n.Int())
		}
		if n := p.Get("pageSize"); n.Int() > 0 {
			pageSize = int(n.Int())
		}
		if n := p.Get("totalItems"); n.Exists() {
			total = int(n.Int())
		}
	}
	return query.NewPage(items, pageNumber, pageSize, total), nil
}

package api

import (
	"context"
	"net/url"
	"strings"
)

// endpoint is a request path plus the route template it was built from.
// Metrics and spans are labelled by route so ids never become label values.
type endpoint struct {
	route string
	path  string
}

// at fills the {placeholders} of route, in order, with escaped args.
func at(route string, args ...string) endpoint {
	var b strings.Builder
	rest := route
	for _, arg := range args {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		b.WriteString(rest[:open])
		b.WriteString(url.PathEscape(arg))
		rest = rest[open+end+1:]
	}
	b.WriteString(rest)
	return endpoint{route: route, path: b.String()}
}

type correlationKey struct{}

// WithCorrelationID returns a context whose requests carry id as X-Correlation-ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

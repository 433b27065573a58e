// Package correlation carries a cross-request correlation id. Callers may
// supply one in the X-Correlation-Id header; otherwise a ULID is minted.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

const Header = "X-Correlation-Id"

type key struct{}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(key{}).(string)
	return id
}

// ContextWithCorrelationID stores id on ctx. Blank ids leave ctx untouched.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key{}, id)
}

func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := ExtractCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return ContextWithCorrelationID(ctx, id), id
}

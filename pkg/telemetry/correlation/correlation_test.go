package correlation

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDMintsULID(t *testing.T) {
	ctx, id := EnsureCorrelationID(context.Background())
	_, err := ulid.Parse(id)
	require.NoError(t, err)
	require.Equal(t, id, ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDKeepsCallerValue(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "  upstream-7 ")
	_, id := EnsureCorrelationID(ctx)
	require.Equal(t, "upstream-7", id)
}

func TestBlankCorrelationIDIgnored(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "   ")
	require.Empty(t, ExtractCorrelationID(ctx))
}

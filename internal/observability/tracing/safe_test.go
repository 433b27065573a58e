package tracing

import (
	"errors"
	"fmt"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/journal"),
		attribute.String("user.email", "a@b.c"),
		attribute.String("auth.token", "xyz"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("expected only http.route to remain, got %v", attrs)
	}
}

func TestSafeErrorKeepsOutermostMessage(t *testing.T) {
	err := fmt.Errorf("create journal entry: %w", errors.New("pq: insert into journal_lines failed"))
	got := SafeError(err)
	if got.Error() != "create journal entry" {
		t.Fatalf("unexpected safe error %q", got.Error())
	}
	if SafeError(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

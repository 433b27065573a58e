package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("report", "trial_balance"),
		attribute.String("company_id", "456"),
		attribute.String("source", "api"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "report" && attrs[1].Key != "report" {
		t.Fatalf("expected report to be retained")
	}
	if attrs[0].Key != "source" && attrs[1].Key != "source" {
		t.Fatalf("expected source to be retained")
	}
}

func TestLineBucket(t *testing.T) {
	cases := map[int]string{2: "2", 4: "3-5", 12: "6-20", 40: "21+"}
	for lines, want := range cases {
		if got := lineBucket(lines); got != want {
			t.Fatalf("lineBucket(%d) = %q, want %q", lines, got, want)
		}
	}
}

func TestMetricsRegistersCounters(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if len(m.counters) != len(counterDescriptions) {
		t.Fatalf("expected %d counters, got %d", len(counterDescriptions), len(m.counters))
	}
	m.RecordJournalEntry(context.Background(), "api", 3)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordReport(context.Background(), "balance_sheet", "json")
	m.RecordRateLimitDenied(context.Background(), "login", "burst")
}

package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const exportInterval = 10 * time.Second

type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// NewProvider registers the global meter provider. With export disabled a
// noop provider is installed so instruments stay cheap to call.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, fmt.Errorf("metrics exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)),
	))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.StopHook(provider.Shutdown))
	}
	log.Info("metrics export enabled",
		zap.String("endpoint", cfg.ExporterEndpoint),
		zap.String("protocol", cfg.ExporterProtocol),
	)
	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx := context.Background()
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "", "grpc", "grpc/protobuf":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", p)
	}
}

// Metrics holds the OTLP counters for bookkeeping activity. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	counters map[string]metric.Int64Counter
}

const (
	counterJournalEntries   = "bookkeeper_journal_entries_total"
	counterReportsBuilt     = "bookkeeper_reports_built_total"
	counterRateLimitAllowed = "bookkeeper_rate_limit_allowed_total"
	counterRateLimitDenied  = "bookkeeper_rate_limit_denied_total"
)

var counterDescriptions = map[string]string{
	counterJournalEntries:   "Journal entries posted.",
	counterReportsBuilt:     "Financial reports rendered.",
	counterRateLimitAllowed: "Rate limited requests let through.",
	counterRateLimitDenied:  "Rate limited requests rejected.",
}

func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "bookkeeper"
	}
	meter := provider.Meter(name)

	m := &Metrics{counters: make(map[string]metric.Int64Counter, len(counterDescriptions))}
	for counter, desc := range counterDescriptions {
		c, err := meter.Int64Counter(counter, metric.WithDescription(desc))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", counter, err)
		}
		m.counters[counter] = c
	}
	return m, nil
}

func (m *Metrics) add(ctx context.Context, counter string, attrs ...attribute.KeyValue) {
	if m == nil {
		return
	}
	if c, ok := m.counters[counter]; ok {
		c.Add(ctx, 1, metric.WithAttributes(FilterAttributes(attrs...)...))
	}
}

func (m *Metrics) RecordJournalEntry(ctx context.Context, source string, lines int) {
	m.add(ctx, counterJournalEntries,
		attribute.String("source", strings.TrimSpace(source)),
		attribute.String("line_bucket", lineBucket(lines)),
	)
}

func (m *Metrics) RecordReport(ctx context.Context, report, format string) {
	m.add(ctx, counterReportsBuilt,
		attribute.String("report", report),
		attribute.String("format", format),
	)
}

func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	m.add(ctx, counterRateLimitAllowed, attribute.String("endpoint", endpoint))
}

func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	m.add(ctx, counterRateLimitDenied,
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	)
}

// lineBucket keeps the per-entry line count at a handful of label values.
func lineBucket(lines int) string {
	switch {
	case lines <= 2:
		return "2"
	case lines <= 5:
		return "3-5"
	case lines <= 20:
		return "6-20"
	default:
		return "21+"
	}
}

var allowedLabelKeys = map[attribute.Key]bool{
	"endpoint":    true,
	"status_code": true,
	"source":      true,
	"line_bucket": true,
	"report":      true,
	"format":      true,
	"reason":      true,
}

// FilterAttributes drops any label not on the allow list. Company and user
// ids never become metric labels.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := attrs[:0:0]
	for _, attr := range attrs {
		if allowedLabelKeys[attr.Key] {
			out = append(out, attr)
		}
	}
	return out
}

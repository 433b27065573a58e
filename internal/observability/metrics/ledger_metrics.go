package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	"gorm.io/gorm"
)

const (
	PostingResultPosted   = "posted"
	PostingResultRejected = "rejected"
	PostingResultFailed   = "failed"
)

const (
	PostingReasonAccountNotFound      = "account_not_found"
	PostingReasonCompanyNotFound      = "company_not_found"
	PostingReasonConsistencyFailure   = "consistency_failure"
	PostingReasonDeadlineExceeded     = "deadline_exceeded"
	PostingReasonUniqueViolation      = "unique_violation"
	PostingReasonForeignKeyViolation  = "foreign_key_violation"
	PostingReasonCheckViolation       = "check_violation"
	PostingReasonSerializationFailure = "serialization_failure"
	PostingReasonInvalidInput         = "invalid_input"
	PostingReasonUnknown              = "unknown"
)

// LedgerMetrics captures journal posting and report health signals.
type LedgerMetrics struct {
	postings        *prometheus.CounterVec
	postingDuration *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec
	linesPosted     prometheus.Counter
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the singleton ledger metrics registry.
func Ledger() *LedgerMetrics {
	return LedgerWithConfig(Config{})
}

// LedgerWithConfig returns the singleton ledger metrics registry using config labels.
func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = newLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

func newLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bookkeeper_journal_postings_total",
		Help:        "Journal entry posting attempts by result.",
		ConstLabels: constLabels,
	}, []string{"result"})
	postingDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "bookkeeper_journal_posting_duration_seconds",
		Help:        "Journal entry posting latency including the write transaction.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"result"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bookkeeper_journal_rejections_total",
		Help:        "Journal entries rejected or failed by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "bookkeeper_report_build_duration_seconds",
		Help:        "Financial report aggregation latency by report.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"report"})
	linesPosted := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "bookkeeper_journal_lines_posted_total",
		Help:        "Journal lines written by successful postings.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(postings, postingDuration, rejections, reportDuration, linesPosted)

	return &LedgerMetrics{
		postings:        postings,
		postingDuration: postingDuration,
		rejections:      rejections,
		reportDuration:  reportDuration,
		linesPosted:     linesPosted,
	}
}

// ObservePosting records one posting attempt. A nil err counts as posted.
func (m *LedgerMetrics) ObservePosting(err error, lines int, duration time.Duration) {
	if m == nil {
		return
	}
	result := PostingResultPosted
	if err != nil {
		result = PostingResultRejected
		reason := ClassifyPostingReason(err)
		if reason == PostingReasonConsistencyFailure || reason == PostingReasonUnknown || reason == PostingReasonDeadlineExceeded {
			result = PostingResultFailed
		}
		m.rejections.WithLabelValues(reason).Inc()
	} else if lines > 0 {
		m.linesPosted.Add(float64(lines))
	}
	m.postings.WithLabelValues(result).Inc()
	m.postingDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveReport records report build latency.
func (m *LedgerMetrics) ObserveReport(report string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reportDuration.WithLabelValues(report).Observe(duration.Seconds())
}

// ClassifyPostingReason maps posting errors to low-cardinality reasons.
func ClassifyPostingReason(err error) string {
	if err == nil {
		return PostingReasonUnknown
	}
	var vErr *ledgerdomain.ValidationError
	if errors.As(err, &vErr) && vErr.Code != "" {
		return vErr.Code
	}
	var cErr *ledgerdomain.ConsistencyError
	if errors.As(err, &cErr) {
		return PostingReasonConsistencyFailure
	}
	switch {
	case errors.Is(err, ledgerdomain.ErrAccountNotFound):
		return PostingReasonAccountNotFound
	case errors.Is(err, ledgerdomain.ErrCompanyNotFound):
		return PostingReasonCompanyNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return PostingReasonDeadlineExceeded
	case ledgerdomain.IsInputError(err):
		return PostingReasonInvalidInput
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return PostingReasonUniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated), hasPGCode(err, "23503"):
		return PostingReasonForeignKeyViolation
	case errors.Is(err, gorm.ErrCheckConstraintViolated), hasPGCode(err, "23514"):
		return PostingReasonCheckViolation
	case hasPGCode(err, "40001"):
		return PostingReasonSerializationFailure
	default:
		return PostingReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

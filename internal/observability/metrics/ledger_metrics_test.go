package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	"gorm.io/gorm"
)

func TestClassifyPostingReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unbalanced",
			err:  ledgerdomain.NewValidationError(ledgerdomain.CodeUnbalanced, "Entry must be balanced. Debit: 100.00, Credit: 90.00"),
			want: ledgerdomain.CodeUnbalanced,
		},
		{
			name: "account_not_found",
			err:  fmt.Errorf("resolve accounts: %w", ledgerdomain.ErrAccountNotFound),
			want: PostingReasonAccountNotFound,
		},
		{
			name: "consistency",
			err:  &ledgerdomain.ConsistencyError{Reason: "totals mismatch"},
			want: PostingReasonConsistencyFailure,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: PostingReasonDeadlineExceeded,
		},
		{
			name: "foreign_key",
			err:  &pgconn.PgError{Code: "23503"},
			want: PostingReasonForeignKeyViolation,
		},
		{
			name: "check",
			err:  gorm.ErrCheckConstraintViolated,
			want: PostingReasonCheckViolation,
		},
		{
			name: "invalid_description",
			err:  ledgerdomain.ErrInvalidDescription,
			want: PostingReasonInvalidInput,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: PostingReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPostingReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObservePosting(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newLedgerMetrics(registry, Config{ServiceName: "bookkeeper", Environment: "test"})

	m.ObservePosting(nil, 3, 10*time.Millisecond)
	m.ObservePosting(ledgerdomain.NewValidationError(ledgerdomain.CodeTooFewLines, "Entry must have at least 2 lines"), 1, time.Millisecond)
	m.ObservePosting(&ledgerdomain.ConsistencyError{Reason: "x"}, 2, time.Millisecond)

	if got := testutil.ToFloat64(m.postings.WithLabelValues(PostingResultPosted)); got != 1 {
		t.Fatalf("expected 1 posted, got %v", got)
	}
	if got := testutil.ToFloat64(m.postings.WithLabelValues(PostingResultRejected)); got != 1 {
		t.Fatalf("expected 1 rejected, got %v", got)
	}
	if got := testutil.ToFloat64(m.postings.WithLabelValues(PostingResultFailed)); got != 1 {
		t.Fatalf("expected 1 failed, got %v", got)
	}
	if got := testutil.ToFloat64(m.linesPosted); got != 3 {
		t.Fatalf("expected 3 lines posted, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejections.WithLabelValues(ledgerdomain.CodeTooFewLines)); got != 1 {
		t.Fatalf("expected 1 too_few_lines rejection, got %v", got)
	}
}

func TestHTTPMetricsObserve(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	m.observe("GET", "/api/journal/:id", 200, 5*time.Millisecond)
	m.observe("GET", "/api/journal/:id", 200, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/journal/:id", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

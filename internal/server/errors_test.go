package server

import (
	"fmt"
	"net/http"
	"testing"

	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	authdomain "github.com/smallbiznis/bookkeeper/internal/auth/domain"
	"github.com/smallbiznis/bookkeeper/internal/authorization"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantType    string
		wantMessage string
	}{
		{"company conflict", companydomain.ErrCodeExists, http.StatusBadRequest, "conflict", "Company code already exists"},
		{"wrapped account conflict", fmt.Errorf("create: %w", accountdomain.ErrCodeExists), http.StatusBadRequest, "conflict", "Account code already exists in this company"},
		{"bad credentials", authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "Incorrect email or password"},
		{"expired token", authdomain.ErrTokenExpired, http.StatusUnauthorized, "unauthorized", "Could not validate credentials"},
		{"forbidden", authorization.ErrForbidden, http.StatusForbidden, "forbidden", "Not authorized"},
		{"parent missing", accountdomain.ErrParentNotFound, http.StatusNotFound, "not_found", "Parent account not found"},
		{"entry missing", ledgerdomain.ErrEntryNotFound, http.StatusNotFound, "not_found", "Journal entry not found"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "too many requests"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error", "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, payload.Type)
			assert.Equal(t, tt.wantMessage, payload.Message)
		})
	}
}

func TestMapErrorDerivesFieldFromWrappedSentinel(t *testing.T) {
	status, payload := mapError(fmt.Errorf("chart %q: %w", "bogus", companydomain.ErrInvalidChartTemplate))

	assert.Equal(t, http.StatusBadRequest, status)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "invalid_chart_template", payload.Errors[0].Code)
		assert.Equal(t, "chart_template", payload.Errors[0].Field)
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(accountdomain.ErrParentCycle)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_parent_cycle", code)

	typ, code = classifyErrorForLog(fmt.Errorf("boom"))
	assert.Equal(t, "internal_error", typ)
	assert.Equal(t, "internal_error", code)
}

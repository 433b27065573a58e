package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	authdomain "github.com/smallbiznis/bookkeeper/internal/auth/domain"
	"github.com/smallbiznis/bookkeeper/internal/authorization"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	reportdomain "github.com/smallbiznis/bookkeeper/internal/report/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// Ledger rule violations carry a client-safe message.
	var ledgerErr *ledgerdomain.ValidationError
	if errors.As(err, &ledgerErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: ledgerErr.Message,
			Errors: []ValidationError{
				{
					Field:   "lines",
					Code:    ledgerErr.Code,
					Message: ledgerErr.Message,
				},
			},
		}
	}

	var consistencyErr *ledgerdomain.ConsistencyError
	if errors.As(err, &consistencyErr) {
		return http.StatusInternalServerError, errorPayload{
			Type:    "consistency_failure",
			Message: "ledger consistency failure",
		}
	}

	if isConflictError(err) {
		return http.StatusBadRequest, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken),
		errors.Is(err, authdomain.ErrTokenExpired):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: unauthorizedMessage(err),
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInactiveAccount),
		errors.Is(err, authdomain.ErrUserInactive):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "Not authorized",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: notFoundMessage(err),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the (type, code) pair attached to request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var ledgerErr *ledgerdomain.ValidationError
	if errors.As(err, &ledgerErr) {
		return "validation_error", ledgerErr.Code
	}
	var consistencyErr *ledgerdomain.ConsistencyError
	if errors.As(err, &consistencyErr) {
		return "consistency_failure", consistencyErr.Reason
	}
	if vErr := asValidationErrors(err); vErr != nil && len(vErr.Errors) > 0 {
		return "validation_error", vErr.Errors[0].Code
	}
	_, payload := mapError(err)
	if payload.Type == "internal_error" {
		return payload.Type, "internal_error"
	}
	return payload.Type, rootCode(err)
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		ledgerdomain.IsInputError(err),
		isCompanyValidationError(err),
		isAccountValidationError(err),
		isAuthValidationError(err),
		isAuditValidationError(err),
		errors.Is(err, reportdomain.ErrInvalidPeriod):
		return true
	default:
		return false
	}
}

func isCompanyValidationError(err error) bool {
	switch {
	case errors.Is(err, companydomain.ErrInvalidName),
		errors.Is(err, companydomain.ErrInvalidCode),
		errors.Is(err, companydomain.ErrInvalidCurrency),
		errors.Is(err, companydomain.ErrInvalidChartTemplate):
		return true
	default:
		return false
	}
}

func isAccountValidationError(err error) bool {
	switch {
	case errors.Is(err, accountdomain.ErrInvalidCompany),
		errors.Is(err, accountdomain.ErrInvalidCode),
		errors.Is(err, accountdomain.ErrInvalidName),
		errors.Is(err, accountdomain.ErrInvalidType),
		errors.Is(err, accountdomain.ErrCompanyMismatch),
		errors.Is(err, accountdomain.ErrParentCycle):
		return true
	default:
		return false
	}
}

func isAuthValidationError(err error) bool {
	switch {
	case errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, authdomain.ErrInvalidPassword),
		errors.Is(err, authdomain.ErrInvalidRole):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	return errors.Is(err, companydomain.ErrCodeExists) ||
		errors.Is(err, accountdomain.ErrCodeExists) ||
		errors.Is(err, authdomain.ErrUserExists)
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, companydomain.ErrCodeExists):
		return "Company code already exists"
	case errors.Is(err, accountdomain.ErrCodeExists):
		return "Account code already exists in this company"
	case errors.Is(err, authdomain.ErrUserExists):
		return "Email already registered"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, companydomain.ErrNotFound),
		errors.Is(err, accountdomain.ErrNotFound),
		errors.Is(err, accountdomain.ErrCompanyNotFound),
		errors.Is(err, accountdomain.ErrParentNotFound),
		ledgerdomain.IsNotFound(err),
		errors.Is(err, reportdomain.ErrCompanyNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, accountdomain.ErrParentNotFound):
		return "Parent account not found"
	case errors.Is(err, ledgerdomain.ErrAccountNotFound):
		return "One or more accounts not found or don't belong to this company"
	case errors.Is(err, ledgerdomain.ErrEntryNotFound):
		return "Journal entry not found"
	case errors.Is(err, accountdomain.ErrNotFound):
		return "Account not found"
	case errors.Is(err, companydomain.ErrNotFound),
		errors.Is(err, accountdomain.ErrCompanyNotFound),
		errors.Is(err, ledgerdomain.ErrCompanyNotFound),
		errors.Is(err, reportdomain.ErrCompanyNotFound):
		return "Company not found"
	case errors.Is(err, authdomain.ErrUserNotFound):
		return "User not found"
	default:
		return "not found"
	}
}

func unauthorizedMessage(err error) string {
	if errors.Is(err, authdomain.ErrInvalidCredentials) {
		return "Incorrect email or password"
	}
	return "Could not validate credentials"
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return rootCode(err)
}

// rootCode returns the innermost wrapped sentinel's text.
func rootCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_password":
		return "password must be at least 8 characters"
	case "invalid_parent_cycle":
		return "parent account would create a cycle"
	case "invalid_company_change":
		return "account cannot move to another company"
	case "invalid_period":
		return "start date must not be after end date"
	default:
		return "invalid value"
	}
}

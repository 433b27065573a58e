package logger

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/bookkeeper/pkg/telemetry/correlation"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		ErrorClassifier: func(err error) (string, string) { return "not_found", "entry_not_found" },
	}))
	r.GET("/api/journal/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("entry_not_found"))
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/journal/42", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, "req-1", w.Header().Get("X-Request-Id"))
	require.NotEmpty(t, w.Header().Get(correlation.Header))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/api/journal/:id", fields["route"])
	require.Equal(t, int64(http.StatusNotFound), fields["status"])
	require.Equal(t, "not_found", fields["error_type"])
	require.Equal(t, "req-1", fields["request_id"])
	require.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestOperationFromSQL(t *testing.T) {
	require.Equal(t, "SELECT", operationFromSQL("WITH x AS (SELECT 1) SELECT * FROM x"))
	require.Equal(t, "INSERT", operationFromSQL("  insert into journal_entries values (1)"))
	require.Equal(t, "UNKNOWN", operationFromSQL(""))
}

func TestRequestLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, requestLevel("/health", http.StatusOK, ""))
	require.Equal(t, zapcore.ErrorLevel, requestLevel("/api/companies", http.StatusInternalServerError, "internal_error"))
	require.Equal(t, zapcore.InfoLevel, requestLevel("/api/companies", http.StatusBadRequest, "validation_error"))
	require.Equal(t, zapcore.WarnLevel, requestLevel("/api/companies", http.StatusForbidden, "forbidden"))
	require.Equal(t, zapcore.InfoLevel, requestLevel("/api/companies", http.StatusCreated, ""))
}

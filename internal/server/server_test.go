package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	accountrepo "github.com/smallbiznis/bookkeeper/internal/account/repository"
	accountservice "github.com/smallbiznis/bookkeeper/internal/account/service"
	auditrepo "github.com/smallbiznis/bookkeeper/internal/audit/repository"
	auditservice "github.com/smallbiznis/bookkeeper/internal/audit/service"
	authdomain "github.com/smallbiznis/bookkeeper/internal/auth/domain"
	authrepo "github.com/smallbiznis/bookkeeper/internal/auth/repository"
	authservice "github.com/smallbiznis/bookkeeper/internal/auth/service"
	"github.com/smallbiznis/bookkeeper/internal/auth/token"
	"github.com/smallbiznis/bookkeeper/internal/authorization"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	companyrepo "github.com/smallbiznis/bookkeeper/internal/company/repository"
	companyservice "github.com/smallbiznis/bookkeeper/internal/company/service"
	"github.com/smallbiznis/bookkeeper/internal/config"
	ledgerrepo "github.com/smallbiznis/bookkeeper/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/bookkeeper/internal/ledger/service"
	"github.com/smallbiznis/bookkeeper/internal/migration"
	"github.com/smallbiznis/bookkeeper/internal/observability"
	"github.com/smallbiznis/bookkeeper/internal/ratelimit"
	reportservice "github.com/smallbiznis/bookkeeper/internal/report/service"
	"github.com/smallbiznis/bookkeeper/internal/report/render"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	server *Server
	conn   *gorm.DB
	clock  *clock.FakeClock
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migration.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	if cfg.AuthJWTSecret == "" {
		cfg.AuthJWTSecret = "test-secret"
	}
	issuer, err := token.NewIssuer(cfg)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	enforcer, err := authorization.NewEnforcer(conn)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2024, time.March, 25, 15, 0, 0, 0, time.UTC))

	auditSvc := auditservice.NewService(auditservice.Params{DB: conn, Log: log, GenID: node, Repo: auditrepo.Provide()})
	authSvc := authservice.New(authservice.Params{
		DB: conn, Log: log, GenID: node, Repo: authrepo.Provide(),
		Tokens: issuer, Clock: clk, AuditSvc: auditSvc,
	})
	companySvc := companyservice.NewService(companyservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, AuditSvc: auditSvc,
		Repo: companyrepo.Provide(), AccountRepo: accountrepo.Provide(),
	})
	accountSvc := accountservice.NewService(accountservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, AuditSvc: auditSvc,
		Repo: accountrepo.Provide(), CompanyRepo: companyrepo.Provide(),
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB: conn, Log: log, GenID: node, Clock: clk, AuditSvc: auditSvc,
		Repo: ledgerrepo.Provide(),
	})
	reportSvc := reportservice.NewService(reportservice.Params{
		Log: log, CompanySvc: companySvc, AccountSvc: accountSvc, LedgerSvc: ledgerSvc, Clock: clk,
	})

	srv := NewServer(ServerParams{
		Gin:          NewEngine(observability.Config{}, nil),
		Cfg:          cfg,
		AuthSvc:      authSvc,
		AuthzSvc:     authorization.NewService(authorization.Params{DB: conn, Log: log, Enforcer: enforcer, AuditSvc: auditSvc}),
		AuditSvc:     auditSvc,
		CompanySvc:   companySvc,
		AccountSvc:   accountSvc,
		LedgerSvc:    ledgerSvc,
		ReportSvc:    reportSvc,
		Renderer:     render.New(),
		LoginLimiter: ratelimit.NewLoginLimiter(cfg, nil, log),
	})

	return &testEnv{server: srv, conn: conn, clock: clk}
}

func (e *testEnv) do(t *testing.T, method, path, accessToken string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) requestToken(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "192.0.2.10:40000"
	rec := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(rec, req)
	return rec
}

// signup registers a user, optionally overrides the role, and returns an access token.
func (e *testEnv) signup(t *testing.T, email string, role authdomain.Role) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":     email,
		"password":  "password123",
		"full_name": "Test User",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	if role != "" {
		require.NoError(t, e.conn.Model(&authdomain.User{}).
			Where("email = ?", email).
			Update("role", role).Error)
	}

	rec = e.requestToken(t, email, "password123")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "bearer", resp.TokenType)
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out), string(envelope.Data))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rec := env.do(t, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	accessToken := env.signup(t, "owner@example.com", "")

	rec := env.do(t, http.MethodGet, "/api/auth/me", accessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me map[string]any
	decodeData(t, rec, &me)
	assert.Equal(t, "owner@example.com", me["email"])
	assert.Equal(t, "admin", me["role"])
	assert.NotContains(t, me, "password_hash")
}

func TestMeRequiresBearerToken(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rec := env.do(t, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = env.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenRejectsWrongPassword(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.signup(t, "owner@example.com", "")

	rec := env.requestToken(t, "owner@example.com", "wrong-password")

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Incorrect email or password", decodeError(t, rec).Message)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.signup(t, "owner@example.com", "")

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "Owner@Example.com",
		"password": "password123",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decodeError(t, rec).Message)
}

func TestRegisterShortPassword(t *testing.T) {
	env := newTestEnv(t, config.Config{})

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "owner@example.com",
		"password": "short",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_password", payload.Errors[0].Code)
	assert.Equal(t, "password", payload.Errors[0].Field)
}

func TestTokenRateLimited(t *testing.T) {
	env := newTestEnv(t, config.Config{LoginRatePerSecond: 0.001, LoginBurst: 2})
	env.signup(t, "owner@example.com", "")

	// signup already spent one token from the same client address.
	rec := env.requestToken(t, "owner@example.com", "password123")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.requestToken(t, "owner@example.com", "password123")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeError(t, rec).Type)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, config.Config{CORSAllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/companies", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.server.Engine().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/companies", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	env.server.Engine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

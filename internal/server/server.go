package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/bookkeeper/internal/account"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/internal/audit"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/auth"
	authdomain "github.com/smallbiznis/bookkeeper/internal/auth/domain"
	"github.com/smallbiznis/bookkeeper/internal/authorization"
	"github.com/smallbiznis/bookkeeper/internal/company"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/internal/ledger"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	"github.com/smallbiznis/bookkeeper/internal/observability"
	obsmiddleware "github.com/smallbiznis/bookkeeper/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/bookkeeper/internal/observability/metrics"
	obstracing "github.com/smallbiznis/bookkeeper/internal/observability/tracing"
	"github.com/smallbiznis/bookkeeper/internal/ratelimit"
	"github.com/smallbiznis/bookkeeper/internal/report"
	reportdomain "github.com/smallbiznis/bookkeeper/internal/report/domain"
	"github.com/smallbiznis/bookkeeper/internal/report/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	auth.Module,
	company.Module,
	account.Module,
	ledger.Module,
	report.Module,
	ratelimit.Module,
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, s *Server) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	authSvc      authdomain.Service
	authzSvc     authorization.Service
	auditSvc     auditdomain.Service
	companySvc   companydomain.Service
	accountSvc   accountdomain.Service
	ledgerSvc    ledgerdomain.Service
	reportSvc    reportdomain.Service
	renderer     render.Renderer
	loginLimiter *ratelimit.LoginLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	AuthSvc      authdomain.Service
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	CompanySvc   companydomain.Service
	AccountSvc   accountdomain.Service
	LedgerSvc    ledgerdomain.Service
	ReportSvc    reportdomain.Service
	Renderer     render.Renderer
	LoginLimiter *ratelimit.LoginLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		authSvc:      p.AuthSvc,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		companySvc:   p.CompanySvc,
		accountSvc:   p.AccountSvc,
		ledgerSvc:    p.LedgerSvc,
		reportSvc:    p.ReportSvc,
		renderer:     p.Renderer,
		loginLimiter: p.LoginLimiter,
		obsMetrics:   p.ObsMetrics,
	}

	svc.engine.Use(CORS(p.Cfg.CORSAllowedOrigins))
	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/token", s.LoginRateLimit(), s.IssueToken)
	auth.POST("/register", s.Register)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Companies --------
	api.GET("/companies", s.authorize(authorization.ObjectCompany, authorization.ActionView), s.ListCompanies)
	api.POST("/companies", s.authorize(authorization.ObjectCompany, authorization.ActionCreate), s.CreateCompany)
	api.GET("/companies/:id", s.authorize(authorization.ObjectCompany, authorization.ActionView), s.GetCompanyByID)
	api.PUT("/companies/:id", s.authorize(authorization.ObjectCompany, authorization.ActionUpdate), s.UpdateCompany)

	// -------- Accounts --------
	api.GET("/accounts", s.authorize(authorization.ObjectAccount, authorization.ActionView), s.ListAccounts)
	api.POST("/accounts", s.authorize(authorization.ObjectAccount, authorization.ActionCreate), s.CreateAccount)
	api.GET("/accounts/:id", s.authorize(authorization.ObjectAccount, authorization.ActionView), s.GetAccountByID)
	api.PUT("/accounts/:id", s.authorize(authorization.ObjectAccount, authorization.ActionUpdate), s.UpdateAccount)

	// -------- Journal --------
	api.GET("/journal", s.authorize(authorization.ObjectJournalEntry, authorization.ActionView), s.ListJournalEntries)
	api.POST("/journal", s.authorize(authorization.ObjectJournalEntry, authorization.ActionCreate), s.CreateJournalEntry)
	api.GET("/journal/:id", s.authorize(authorization.ObjectJournalEntry, authorization.ActionView), s.GetJournalEntryByID)
	api.DELETE("/journal/:id", s.authorize(authorization.ObjectJournalEntry, authorization.ActionDelete), s.DeleteJournalEntry)

	// -------- Reports --------
	reports := api.Group("/reports", s.authorize(authorization.ObjectReport, authorization.ActionView))
	reports.GET("/balance-sheet/:company_id", s.GetBalanceSheet)
	reports.GET("/income-statement/:company_id", s.GetIncomeStatement)
	reports.GET("/trial-balance/:company_id", s.GetTrialBalance)
	reports.GET("/dashboard", s.GetDashboard)

	// -------- Audit --------
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

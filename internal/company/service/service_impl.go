package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	money "github.com/Rhymond/go-money"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/internal/company/domain"
	"github.com/smallbiznis/bookkeeper/internal/config"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxCodeLength = 32

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	AccountRepo accountdomain.Repository
	Charts      *config.ChartConfigHolder `optional:"true"`
	Clock       clock.Clock               `optional:"true"`
	AuditSvc    auditdomain.Service       `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	accountRepo accountdomain.Repository
	charts      *config.ChartConfigHolder
	clock       clock.Clock
	auditSvc    auditdomain.Service
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	charts := p.Charts
	if charts == nil {
		charts = config.NewStaticChartConfigHolder(config.DefaultChartConfig())
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("company.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		accountRepo: p.AccountRepo,
		charts:      charts,
		clock:       clk,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCompanyRequest) (*domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = deriveCode(name)
	}
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	currency, err := normalizeCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	fiscalYearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	if req.FiscalYearStart != nil && !req.FiscalYearStart.IsZero() {
		fiscalYearStart = dateOnly(*req.FiscalYearStart)
	}

	company := &domain.Company{
		ID:              s.genID.Generate(),
		Name:            name,
		Code:            code,
		FiscalYearStart: fiscalYearStart,
		Currency:        currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var accounts []accountdomain.Account
	if template := strings.TrimSpace(req.ChartTemplate); template != "" {
		tmpl, ok := s.charts.Get().Template(template)
		if !ok {
			return nil, domain.ErrInvalidChartTemplate
		}
		accounts, err = accountdomain.AccountsFromTemplate(company.ID, tmpl, s.genID, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidChartTemplate, err)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrCodeExists
		}
		if err := s.repo.Insert(ctx, tx, company); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCodeExists
			}
			return fmt.Errorf("insert company: %w", err)
		}
		for i := range accounts {
			if err := s.accountRepo.Insert(ctx, tx, &accounts[i]); err != nil {
				return fmt.Errorf("insert chart account %s: %w", accounts[i].Code, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.auditSvc != nil {
		if err := s.auditSvc.Record(ctx, auditdomain.Event{
			CompanyID:  &company.ID,
			Action:     "company.created",
			TargetType: auditdomain.TargetCompany,
			TargetID:   company.ID.String(),
			Metadata: map[string]any{
				"code":           company.Code,
				"chart_accounts": len(accounts),
			},
		}); err != nil {
			s.log.Warn("failed to write company audit log", zap.Error(err))
		}
	}

	s.log.Info("company created",
		zap.String("company_id", company.ID.String()),
		zap.String("code", company.Code),
		zap.Int("chart_accounts", len(accounts)),
	)
	return company, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCompanyRequest) (*domain.Company, error) {
	if req.ID == 0 {
		return nil, domain.ErrNotFound
	}

	var updated *domain.Company
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			company.Name = name
		}
		if req.Currency != nil {
			currency, err := normalizeCurrency(*req.Currency)
			if err != nil {
				return err
			}
			company.Currency = currency
		}
		if req.FiscalYearStart != nil && !req.FiscalYearStart.IsZero() {
			company.FiscalYearStart = dateOnly(*req.FiscalYearStart)
		}
		company.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.Update(ctx, tx, company); err != nil {
			return fmt.Errorf("update company: %w", err)
		}
		updated = company
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Company, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	company, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	return company, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCompanyRequest) ([]domain.Company, error) {
	page := pagination.Offset{Skip: req.Skip, Limit: req.Limit}.Clamp(domain.DefaultListLimit, domain.MaxListLimit)
	return s.list(ctx, page.Skip, page.Limit)
}

func (s *Service) ListAll(ctx context.Context) ([]domain.Company, error) {
	return s.list(ctx, 0, 0)
}

func (s *Service) list(ctx context.Context, offset, limit int) ([]domain.Company, error) {
	items, err := s.repo.List(ctx, s.db, offset, limit)
	if err != nil {
		return nil, err
	}
	companies := make([]domain.Company, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		companies = append(companies, *item)
	}
	return companies, nil
}

// deriveCode builds an upper-case code from the company name.
func deriveCode(name string) string {
	code := strings.ToUpper(slug.Make(name))
	if len(code) > maxCodeLength {
		code = strings.TrimRight(code[:maxCodeLength], "-")
	}
	return code
}

func normalizeCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return domain.DefaultCurrency, nil
	}
	if money.GetCurrency(code) == nil {
		return "", domain.ErrInvalidCurrency
	}
	return code, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

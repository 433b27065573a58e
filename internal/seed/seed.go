package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	accountdomain "github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/internal/auditcontext"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	authdomain "github.com/smallbiznis/bookkeeper/internal/auth/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	"github.com/smallbiznis/bookkeeper/internal/config"
	ledgerdomain "github.com/smallbiznis/bookkeeper/internal/ledger/domain"
	"github.com/smallbiznis/bookkeeper/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	bootstrapLockKey = "bookkeeper:bootstrap"
	bootstrapLockTTL = time.Minute
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Config     config.Config
	AuthSvc    authdomain.Service
	CompanySvc companydomain.Service
	AccountSvc accountdomain.Service
	LedgerSvc  ledgerdomain.Service
	Locker     *ratelimit.Locker `optional:"true"`
	Clock      clock.Clock       `optional:"true"`
}

// Seeder creates the bootstrap admin and the optional demo companies.
type Seeder struct {
	log        *zap.Logger
	cfg        config.Config
	authSvc    authdomain.Service
	companySvc companydomain.Service
	accountSvc accountdomain.Service
	ledgerSvc  ledgerdomain.Service
	locker     *ratelimit.Locker
	clock      clock.Clock
}

func New(p Params) *Seeder {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Seeder{
		log:        p.Log.Named("seed"),
		cfg:        p.Config,
		authSvc:    p.AuthSvc,
		companySvc: p.CompanySvc,
		accountSvc: p.AccountSvc,
		ledgerSvc:  p.LedgerSvc,
		locker:     p.Locker,
		clock:      clk,
	}
}

// Bootstrap ensures the admin user and, when enabled or forced, the sample
// data. Concurrent replicas serialize on a redis lock when one is available.
func (s *Seeder) Bootstrap(ctx context.Context, withSample bool) error {
	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "")

	if s.locker == nil {
		return s.bootstrap(ctx, withSample)
	}

	err := s.locker.WithLock(ctx, bootstrapLockKey, bootstrapLockTTL, func(ctx context.Context) error {
		return s.bootstrap(ctx, withSample)
	})
	switch {
	case errors.Is(err, ratelimit.ErrLockHeld):
		s.log.Info("bootstrap already running elsewhere, skipping")
		return nil
	case errors.Is(err, ratelimit.ErrLockUnavailable):
		s.log.Warn("bootstrap lock unavailable, continuing without it", zap.Error(err))
		return s.bootstrap(ctx, withSample)
	default:
		return err
	}
}

func (s *Seeder) bootstrap(ctx context.Context, withSample bool) error {
	admin, err := s.EnsureAdmin(ctx)
	if err != nil {
		return err
	}
	if !withSample && !s.cfg.BootstrapSampleData {
		return nil
	}
	return s.SeedSample(ctx, admin.ID)
}

func (s *Seeder) EnsureAdmin(ctx context.Context) (*authdomain.User, error) {
	user, created, err := s.authSvc.EnsureAdmin(ctx, s.cfg.BootstrapAdminEmail, s.cfg.BootstrapAdminPassword)
	if err != nil {
		return nil, fmt.Errorf("ensure admin: %w", err)
	}
	if created {
		s.log.Info("bootstrap admin created", zap.String("email", user.Email))
	}
	return user, nil
}

type sampleLine struct {
	code        string
	debit       string
	credit      string
	description string
}

type sampleEntry struct {
	day         int
	description string
	reference   string
	lines       []sampleLine
}

type sampleCompany struct {
	name    string
	code    string
	entries []sampleEntry
}

var sampleCompanies = []sampleCompany{
	{
		name: "Acme Corporation",
		code: "A1",
		entries: []sampleEntry{
			{5, "Sales revenue - cash payment", "INV-001", []sampleLine{
				{"1010", "15000", "0", "Cash received"},
				{"4100", "0", "15000", "Sales revenue"},
			}},
			{10, "Sales revenue - on account", "INV-002", []sampleLine{
				{"1200", "25000", "0", "Account receivable"},
				{"4100", "0", "25000", "Sales revenue"},
			}},
			{15, "Monthly operating expenses", "EXP-001", []sampleLine{
				{"5100", "8500", "0", "Operating expenses"},
				{"1010", "0", "8500", "Cash payment"},
			}},
			{20, "Additional operating expenses", "EXP-002", []sampleLine{
				{"5100", "6500", "0", "Additional expenses"},
				{"1010", "0", "6500", "Cash payment"},
			}},
		},
	},
	{
		name: "Tech Startup Inc",
		code: "T1",
		entries: []sampleEntry{
			{8, "Service revenue", "SRV-001", []sampleLine{
				{"1010", "35000", "0", "Cash received"},
				{"4100", "0", "35000", "Service revenue"},
			}},
		},
	},
}

// SeedSample creates the demo companies with the standard chart and posts
// their entries relative to the first of the current month. Companies that
// already exist are left untouched.
func (s *Seeder) SeedSample(ctx context.Context, createdBy snowflake.ID) error {
	existing, err := s.companySvc.ListAll(ctx)
	if err != nil {
		return err
	}
	codes := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		codes[c.Code] = struct{}{}
	}

	today := clock.Today(s.clock)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	for _, sample := range sampleCompanies {
		if _, ok := codes[sample.code]; ok {
			s.log.Debug("sample company exists", zap.String("code", sample.code))
			continue
		}
		company, err := s.companySvc.Create(ctx, companydomain.CreateCompanyRequest{
			Name:          sample.name,
			Code:          sample.code,
			ChartTemplate: config.DefaultChartTemplate,
		})
		if err != nil {
			if errors.Is(err, companydomain.ErrCodeExists) {
				continue
			}
			return fmt.Errorf("create sample company %s: %w", sample.code, err)
		}

		accounts, err := s.accountSvc.ListByCompany(ctx, company.ID)
		if err != nil {
			return err
		}
		byCode := make(map[string]snowflake.ID, len(accounts))
		for _, acc := range accounts {
			byCode[acc.Code] = acc.ID
		}

		for _, entry := range sample.entries {
			draft, err := buildDraft(company.ID, createdBy, monthStart, entry, byCode)
			if err != nil {
				return err
			}
			if _, err := s.ledgerSvc.CreateEntry(ctx, draft); err != nil {
				return fmt.Errorf("post sample entry %s: %w", entry.reference, err)
			}
		}
		s.log.Info("sample company seeded",
			zap.String("code", sample.code),
			zap.Int("entries", len(sample.entries)),
		)
	}
	return nil
}

func buildDraft(companyID, createdBy snowflake.ID, monthStart time.Time, entry sampleEntry, byCode map[string]snowflake.ID) (ledgerdomain.EntryDraft, error) {
	reference := entry.reference
	draft := ledgerdomain.EntryDraft{
		CompanyID:   companyID,
		Date:        monthStart.AddDate(0, 0, entry.day),
		Description: entry.description,
		Reference:   &reference,
		CreatedBy:   &createdBy,
	}
	for _, line := range entry.lines {
		accountID, ok := byCode[line.code]
		if !ok {
			return ledgerdomain.EntryDraft{}, fmt.Errorf("sample account %s missing from chart", line.code)
		}
		description := line.description
		draft.Lines = append(draft.Lines, ledgerdomain.LineDraft{
			AccountID:   accountID,
			Debit:       decimal.RequireFromString(line.debit),
			Credit:      decimal.RequireFromString(line.credit),
			Description: &description,
		})
	}
	return draft, nil
}

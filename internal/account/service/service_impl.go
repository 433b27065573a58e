package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/account/domain"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxParentDepth bounds the parent walk when checking for cycles.
const maxParentDepth = 256

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	CompanyRepo companydomain.Repository
	Clock       clock.Clock         `optional:"true"`
	AuditSvc    auditdomain.Service `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	companyRepo companydomain.Repository
	clock       clock.Clock
	auditSvc    auditdomain.Service
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("account.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		companyRepo: p.CompanyRepo,
		clock:       clk,
		auditSvc:    p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAccountRequest) (*domain.Account, error) {
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	code, name, accountType, err := normalizeFields(req.Code, req.Name, req.Type)
	if err != nil {
		return nil, err
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := s.clock.Now().UTC()
	account := &domain.Account{
		ID:        s.genID.Generate(),
		CompanyID: req.CompanyID,
		Code:      code,
		Name:      name,
		Type:      accountType,
		ParentID:  normalizeParent(req.ParentID),
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		company, err := s.companyRepo.FindByID(ctx, tx, req.CompanyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrCompanyNotFound
		}

		existing, err := s.repo.FindByCode(ctx, tx, req.CompanyID, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrCodeExists
		}

		if account.ParentID != nil {
			if err := s.checkParent(ctx, tx, account); err != nil {
				return err
			}
		}

		if err := s.repo.Insert(ctx, tx, account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCodeExists
			}
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, account, "account.created", map[string]any{
		"code": account.Code,
		"type": string(account.Type),
	})
	return account, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateAccountRequest) (*domain.Account, error) {
	if req.ID == 0 {
		return nil, domain.ErrNotFound
	}
	code, name, accountType, err := normalizeFields(req.Code, req.Name, req.Type)
	if err != nil {
		return nil, err
	}

	var updated *domain.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		account, err := s.repo.FindByID(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if account == nil {
			return domain.ErrNotFound
		}
		if req.CompanyID != 0 && req.CompanyID != account.CompanyID {
			return domain.ErrCompanyMismatch
		}

		if code != account.Code {
			existing, err := s.repo.FindByCode(ctx, tx, account.CompanyID, code)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != account.ID {
				return domain.ErrCodeExists
			}
		}

		account.Code = code
		account.Name = name
		account.Type = accountType
		account.ParentID = normalizeParent(req.ParentID)
		account.IsActive = true
		if req.IsActive != nil {
			account.IsActive = *req.IsActive
		}
		account.UpdatedAt = s.clock.Now().UTC()

		if account.ParentID != nil {
			if err := s.checkParent(ctx, tx, account); err != nil {
				return err
			}
		}

		if err := s.repo.Update(ctx, tx, account); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCodeExists
			}
			return fmt.Errorf("update account: %w", err)
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, updated, "account.updated", map[string]any{
		"code":      updated.Code,
		"is_active": updated.IsActive,
	})
	return updated, nil
}

// checkParent requires the parent to belong to the same company and rejects
// a parent chain that leads back to the account.
func (s *Service) checkParent(ctx context.Context, tx *gorm.DB, account *domain.Account) error {
	parentID := *account.ParentID
	if parentID == account.ID {
		return domain.ErrParentCycle
	}
	parent, err := s.repo.FindByID(ctx, tx, parentID)
	if err != nil {
		return err
	}
	if parent == nil || parent.CompanyID != account.CompanyID {
		return domain.ErrParentNotFound
	}

	current := parent
	for depth := 0; current.ParentID != nil; depth++ {
		if depth >= maxParentDepth {
			return domain.ErrParentCycle
		}
		if *current.ParentID == account.ID {
			return domain.ErrParentCycle
		}
		next, err := s.repo.FindByID(ctx, tx, *current.ParentID)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Account, error) {
	if id == 0 {
		return nil, domain.ErrNotFound
	}
	account, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNotFound
	}
	return account, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAccountRequest) ([]domain.Account, error) {
	if req.CompanyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	page := pagination.Offset{Skip: req.Skip, Limit: req.Limit}.Clamp(domain.DefaultListLimit, domain.MaxListLimit)
	filter := domain.ListFilter{
		IsActive: req.IsActive,
		Offset:   page.Skip,
		Limit:    page.Limit,
	}
	if strings.TrimSpace(req.Type) != "" {
		accountType, ok := domain.ParseAccountType(req.Type)
		if !ok {
			return nil, domain.ErrInvalidType
		}
		filter.Type = accountType
	}
	return s.list(ctx, req.CompanyID, filter)
}

func (s *Service) ListByCompany(ctx context.Context, companyID snowflake.ID) ([]domain.Account, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	return s.list(ctx, companyID, domain.ListFilter{})
}

func (s *Service) list(ctx context.Context, companyID snowflake.ID, filter domain.ListFilter) ([]domain.Account, error) {
	items, err := s.repo.List(ctx, s.db, companyID, filter)
	if err != nil {
		return nil, err
	}
	accounts := make([]domain.Account, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		accounts = append(accounts, *item)
	}
	return accounts, nil
}

func (s *Service) audit(ctx context.Context, account *domain.Account, action string, metadata map[string]any) {
	if s.auditSvc == nil || account == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Event{
		CompanyID:  &account.CompanyID,
		Action:     action,
		TargetType: auditdomain.TargetAccount,
		TargetID:   account.ID.String(),
		Metadata:   metadata,
	}); err != nil {
		s.log.Warn("failed to write account audit log", zap.String("action", action), zap.Error(err))
	}
}

func normalizeFields(code, name, rawType string) (string, string, domain.AccountType, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", "", "", domain.ErrInvalidCode
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", "", domain.ErrInvalidName
	}
	accountType, ok := domain.ParseAccountType(rawType)
	if !ok {
		return "", "", "", domain.ErrInvalidType
	}
	return code, name, accountType, nil
}

func normalizeParent(parentID *snowflake.ID) *snowflake.ID {
	if parentID == nil || *parentID == 0 {
		return nil
	}
	id := *parentID
	return &id
}

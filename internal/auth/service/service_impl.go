package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/auth/domain"
	"github.com/smallbiznis/bookkeeper/internal/auth/password"
	"github.com/smallbiznis/bookkeeper/internal/auth/token"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Tokens   *token.Issuer
	Clock    clock.Clock         `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	tokens   *token.Issuer
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("auth.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		tokens:   p.Tokens,
		clock:    clk,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	user, err := s.createUser(ctx, req.Email, req.Password, req.FullName, "")
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user, "user.registered")
	return user, nil
}

// EnsureAdmin creates an admin with the given credentials unless a user with
// that email already exists. The bool reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, email, rawPassword string) (*domain.User, bool, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil, false, domain.ErrInvalidEmail
	}
	existing, err := s.repo.FindByEmail(ctx, s.db, normalized)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	user, err := s.createUser(ctx, normalized, rawPassword, "Administrator", domain.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	s.audit(ctx, user, "user.bootstrapped")
	return user, true, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	if password.NeedsRehash(user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password)
	}

	raw, expiresAt, err := s.tokens.Issue(user.ID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{
		AccessToken: raw,
		TokenType:   token.TokenType,
		ExpiresAt:   expiresAt,
		User:        user,
	}, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.User, error) {
	raw := strings.TrimSpace(rawToken)
	if raw == "" {
		return nil, domain.ErrInvalidToken
	}
	id, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidToken
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	return user, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// createUser assigns admin to the first user when role is empty.
func (s *Service) createUser(ctx context.Context, rawEmail, rawPassword, fullName string, role domain.Role) (*domain.User, error) {
	email, err := normalizeEmail(rawEmail)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(rawPassword) < domain.MinPasswordLength {
		return nil, domain.ErrInvalidPassword
	}
	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: hashed,
		FullName:     strings.TrimSpace(fullName),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrUserExists
		}
		if user.Role == "" {
			count, err := s.repo.Count(ctx, tx)
			if err != nil {
				return err
			}
			user.Role = domain.RoleViewer
			if count == 0 {
				user.Role = domain.RoleAdmin
			}
		}
		if err := s.repo.Insert(ctx, tx, user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrUserExists
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
	)
	return user, nil
}

// upgradeHash re-hashes a legacy password after a successful login.
func (s *Service) upgradeHash(ctx context.Context, user *domain.User, plain string) {
	hash, err := password.Hash(plain)
	if err == nil {
		err = s.repo.UpdatePasswordHash(ctx, s.db, user.ID, hash, s.clock.Now().UTC())
	}
	if err != nil {
		s.log.Warn("failed to upgrade password hash", zap.String("user_id", user.ID.String()), zap.Error(err))
		return
	}
	user.PasswordHash = hash
}

func (s *Service) audit(ctx context.Context, user *domain.User, action string) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Event{
		Action:     action,
		TargetType: auditdomain.TargetUser,
		TargetID:   user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
			"role":  string(user.Role),
		},
	}); err != nil {
		s.log.Warn("failed to write user audit log", zap.Error(err))
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

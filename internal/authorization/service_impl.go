package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCompany      = "company"
	ObjectAccount      = "account"
	ObjectJournalEntry = "journal_entry"
	ObjectReport       = "report"
	ObjectAuditLog     = "audit_log"
)

const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	who, err := s.resolveActor(ctx, actor)
	if err != nil {
		s.auditDenied(ctx, who, object, action)
		return err
	}

	if err := s.ensureGrouping(who.subject, who.role); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(who.subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", who.subject),
			zap.String("role", who.role),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDenied(ctx, who, object, action)
		return ErrForbidden
	}
	return nil
}

// principal is a parsed actor string together with its casbin role.
type principal struct {
	subject   string
	role      string
	actorType auditdomain.ActorType
	actorID   string
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (principal, error) {
	if actor == SystemActor {
		return principal{subject: SystemActor, role: "role:system", actorType: auditdomain.ActorTypeSystem}, nil
	}

	raw, ok := strings.CutPrefix(actor, "user:")
	if !ok {
		return principal{}, ErrInvalidActor
	}
	userID, err := snowflake.ParseString(raw)
	if err != nil || userID == 0 {
		return principal{}, ErrInvalidActor
	}

	who := principal{subject: actor, actorType: auditdomain.ActorTypeUser, actorID: userID.String()}
	role, err := s.roleForUser(ctx, userID)
	if err != nil {
		return who, err
	}
	who.role = "role:" + strings.ToLower(role)
	return who, nil
}

func (s *ServiceImpl) roleForUser(ctx context.Context, userID snowflake.ID) (string, error) {
	var row struct {
		Role     string `gorm:"column:role"`
		IsActive bool   `gorm:"column:is_active"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role, is_active
		 FROM users
		 WHERE id = ?
		 LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	if !row.IsActive {
		return "", ErrInactiveAccount
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, who principal, object string, action string) {
	if s.auditSvc == nil || who.actorType == "" {
		return
	}
	if err := s.auditSvc.Record(ctx, auditdomain.Event{
		ActorType:  who.actorType,
		ActorID:    who.actorID,
		Action:     "authorization.denied",
		TargetType: auditdomain.TargetAuthorization,
		TargetID:   object + ":" + action,
		Metadata: map[string]any{
			"object":  object,
			"action":  action,
			"subject": who.subject,
			"role":    who.role,
		},
	}); err != nil {
		s.log.Warn("failed to write authorization audit log", zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	readable := []string{ObjectCompany, ObjectAccount, ObjectJournalEntry, ObjectReport}
	policies := [][]string{
		// Admin permissions
		{"role:admin", ObjectCompany, ActionCreate},
		{"role:admin", ObjectCompany, ActionUpdate},
		{"role:admin", ObjectAccount, ActionCreate},
		{"role:admin", ObjectAccount, ActionUpdate},
		{"role:admin", ObjectJournalEntry, ActionCreate},
		{"role:admin", ObjectJournalEntry, ActionDelete},
		{"role:admin", ObjectAuditLog, ActionView},

		// Accountant permissions
		{"role:accountant", ObjectAccount, ActionCreate},
		{"role:accountant", ObjectAccount, ActionUpdate},
		{"role:accountant", ObjectJournalEntry, ActionCreate},

		// System permissions (bootstrap and sample data)
		{"role:system", ObjectCompany, ActionCreate},
		{"role:system", ObjectAccount, ActionCreate},
		{"role:system", ObjectJournalEntry, ActionCreate},
	}
	for _, role := range []string{"role:admin", "role:accountant", "role:viewer", "role:system"} {
		for _, object := range readable {
			policies = append(policies, []string{role, object, ActionView})
		}
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}

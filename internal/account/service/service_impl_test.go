package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/bookkeeper/internal/account/domain"
	"github.com/smallbiznis/bookkeeper/internal/account/repository"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	companydomain "github.com/smallbiznis/bookkeeper/internal/company/domain"
	companyrepo "github.com/smallbiznis/bookkeeper/internal/company/repository"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc      domain.Service
	companyA snowflake.ID
	companyB snowflake.ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&companydomain.Company{}, &domain.Account{}, &auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	now := time.Now().UTC()
	ids := make([]snowflake.ID, 0, 2)
	for _, code := range []string{"A1", "T1"} {
		company := companydomain.Company{
			ID:              node.Generate(),
			Name:            code,
			Code:            code,
			FiscalYearStart: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC),
			Currency:        "USD",
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := companyrepo.Provide().Insert(context.Background(), conn, &company); err != nil {
			t.Fatalf("insert company: %v", err)
		}
		ids = append(ids, company.ID)
	}

	return fixture{
		svc: NewService(Params{
			DB:          conn,
			Log:         zap.NewNop(),
			GenID:       node,
			Repo:        repository.Provide(),
			CompanyRepo: companyrepo.Provide(),
		}),
		companyA: ids[0],
		companyB: ids[1],
	}
}

func (f fixture) create(t *testing.T, companyID snowflake.ID, code, typ string, parent *snowflake.ID) *domain.Account {
	t.Helper()
	account, err := f.svc.Create(context.Background(), domain.CreateAccountRequest{
		CompanyID: companyID,
		Code:      code,
		Name:      "Account " + code,
		Type:      typ,
		ParentID:  parent,
	})
	if err != nil {
		t.Fatalf("create account %s: %v", code, err)
	}
	return account
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assets := f.create(t, f.companyA, "1000", "asset", nil)
	cash := f.create(t, f.companyA, "1010", "Asset", &assets.ID)
	require.True(t, cash.IsActive)
	require.Equal(t, domain.AccountTypeAsset, cash.Type)
	require.Equal(t, assets.ID, *cash.ParentID)

	_, err := f.svc.Create(ctx, domain.CreateAccountRequest{CompanyID: f.companyA, Code: "1010", Name: "Dup", Type: "asset"})
	require.ErrorIs(t, err, domain.ErrCodeExists)

	same := f.create(t, f.companyB, "1010", "asset", nil)
	require.Equal(t, f.companyB, same.CompanyID)

	_, err = f.svc.Create(ctx, domain.CreateAccountRequest{CompanyID: f.companyA, Code: "9", Name: "Bad", Type: "income"})
	require.ErrorIs(t, err, domain.ErrInvalidType)

	_, err = f.svc.Create(ctx, domain.CreateAccountRequest{CompanyID: snowflake.ID(1), Code: "9", Name: "Ghost", Type: "asset"})
	require.ErrorIs(t, err, domain.ErrCompanyNotFound)
}

func TestCreateAccountRejectsForeignParent(t *testing.T) {
	f := newFixture(t)
	foreign := f.create(t, f.companyB, "1000", "asset", nil)

	_, err := f.svc.Create(context.Background(), domain.CreateAccountRequest{
		CompanyID: f.companyA,
		Code:      "1010",
		Name:      "Cash",
		Type:      "asset",
		ParentID:  &foreign.ID,
	})
	require.ErrorIs(t, err, domain.ErrParentNotFound)
}

func TestUpdateAccountRejectsCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.create(t, f.companyA, "1000", "asset", nil)
	child := f.create(t, f.companyA, "1010", "asset", &root.ID)
	grandchild := f.create(t, f.companyA, "1011", "asset", &child.ID)

	_, err := f.svc.Update(ctx, domain.UpdateAccountRequest{
		ID: root.ID, Code: root.Code, Name: root.Name, Type: "asset", ParentID: &grandchild.ID,
	})
	require.ErrorIs(t, err, domain.ErrParentCycle)

	_, err = f.svc.Update(ctx, domain.UpdateAccountRequest{
		ID: root.ID, Code: root.Code, Name: root.Name, Type: "asset", ParentID: &root.ID,
	})
	require.ErrorIs(t, err, domain.ErrParentCycle)
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.create(t, f.companyA, "1010", "asset", nil)
	other := f.create(t, f.companyA, "1020", "asset", nil)
	inactive := false

	updated, err := f.svc.Update(ctx, domain.UpdateAccountRequest{
		ID: cash.ID, CompanyID: f.companyA, Code: "1015", Name: "Petty Cash", Type: "asset", IsActive: &inactive,
	})
	require.NoError(t, err)
	require.Equal(t, "1015", updated.Code)
	require.False(t, updated.IsActive)

	_, err = f.svc.Update(ctx, domain.UpdateAccountRequest{ID: cash.ID, Code: other.Code, Name: "x", Type: "asset"})
	require.ErrorIs(t, err, domain.ErrCodeExists)

	_, err = f.svc.Update(ctx, domain.UpdateAccountRequest{ID: cash.ID, CompanyID: f.companyB, Code: "1015", Name: "x", Type: "asset"})
	require.ErrorIs(t, err, domain.ErrCompanyMismatch)

	_, err = f.svc.Update(ctx, domain.UpdateAccountRequest{ID: snowflake.ID(5), Code: "1", Name: "x", Type: "asset"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListAccountsFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, f.companyA, "1010", "asset", nil)
	f.create(t, f.companyA, "4100", "revenue", nil)
	expense := f.create(t, f.companyA, "5100", "expense", nil)
	f.create(t, f.companyB, "1010", "asset", nil)

	inactive := false
	_, err := f.svc.Update(ctx, domain.UpdateAccountRequest{ID: expense.ID, Code: "5100", Name: "Exp", Type: "expense", IsActive: &inactive})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, domain.ListAccountRequest{CompanyID: f.companyA})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "1010", all[0].Code)

	revenue, err := f.svc.List(ctx, domain.ListAccountRequest{CompanyID: f.companyA, Type: "revenue"})
	require.NoError(t, err)
	require.Len(t, revenue, 1)

	active := true
	onlyActive, err := f.svc.List(ctx, domain.ListAccountRequest{CompanyID: f.companyA, IsActive: &active})
	require.NoError(t, err)
	require.Len(t, onlyActive, 2)

	paged, err := f.svc.List(ctx, domain.ListAccountRequest{CompanyID: f.companyA, Skip: 2, Limit: 5})
	require.NoError(t, err)
	require.Len(t, paged, 1)

	_, err = f.svc.List(ctx, domain.ListAccountRequest{CompanyID: f.companyA, Type: "bogus"})
	require.ErrorIs(t, err, domain.ErrInvalidType)

	everything, err := f.svc.ListByCompany(ctx, f.companyB)
	require.NoError(t, err)
	require.Len(t, everything, 1)
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/bookkeeper/internal/audit/domain"
	"github.com/smallbiznis/bookkeeper/internal/audit/repository"
	"github.com/smallbiznis/bookkeeper/internal/auditcontext"
	"github.com/smallbiznis/bookkeeper/internal/clock"
	"github.com/smallbiznis/bookkeeper/pkg/db"
	"github.com/smallbiznis/bookkeeper/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&auditdomain.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clk,
	}), clk
}

func TestRecordResolvesActorFromContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := auditcontext.WithActor(context.Background(), string(auditdomain.ActorTypeUser), "42")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	companyID := snowflake.ID(7)
	err := svc.Record(ctx, auditdomain.Event{
		CompanyID:  &companyID,
		Action:     "journal_entry.created",
		TargetType: auditdomain.TargetJournalEntry,
		TargetID:   "99",
		Metadata: map[string]any{
			"email":    "owner@example.com",
			"password": "plaintext",
		},
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{CompanyID: &companyID})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	require.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	require.Equal(t, "42", *entry.ActorID)
	require.Equal(t, "journal_entry", entry.TargetType)
	require.NotNil(t, entry.IPAddress)
	require.Equal(t, "10.0.0.1", *entry.IPAddress)
	require.Nil(t, entry.UserAgent)
	require.Equal(t, "req-1", entry.Metadata["request_id"])
	require.Equal(t, "o****@example.com", entry.Metadata["email"])
	require.Equal(t, "****", entry.Metadata["password"])
	require.True(t, entry.CreatedAt.Equal(time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC)))
}

func TestRecordExplicitActorWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := auditcontext.WithActor(context.Background(), string(auditdomain.ActorTypeUser), "42")

	require.NoError(t, svc.Record(ctx, auditdomain.Event{
		ActorType:  auditdomain.ActorTypeSystem,
		Action:     "user.bootstrapped",
		TargetType: auditdomain.TargetUser,
	}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	require.Equal(t, "system", resp.AuditLogs[0].ActorType)
	require.Nil(t, resp.AuditLogs[0].ActorID)
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.Record(context.Background(), auditdomain.Event{Action: "  ", TargetType: auditdomain.TargetCompany})
	require.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Record(ctx, auditdomain.Event{Action: "company.created", TargetType: auditdomain.TargetCompany}))
		clk.Advance(time.Second)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)
	require.Equal(t, "system", first.AuditLogs[0].ActorType)
	require.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	require.False(t, second.HasMore)
	require.NotEqual(t, first.AuditLogs[1].ID, second.AuditLogs[0].ID)
}

func TestListRejectsBadInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	require.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)

	start := time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	require.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/tunedesk/internal/audit/repository"
	"github.com/smallbiznis/tunedesk/internal/clock"
	obscontext "github.com/smallbiznis/tunedesk/internal/observability/context"
	"github.com/smallbiznis/tunedesk/pkg/db"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"go.uber.org/zap"
)

func newAuditService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
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
	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clk,
	}), clk
}

func adminContext(accountID, userID string) context.Context {
	ctx := obscontext.WithAccountID(context.Background(), accountID)
	ctx = obscontext.WithActor(ctx, "user", userID)
	return obscontext.WithRequestID(ctx, "req-1")
}

func TestRecordStampsActorAndAccount(t *testing.T) {
	svc, _ := newAuditService(t)
	ctx := adminContext("label-a", "admin-1")

	err := svc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionReportUploaded,
		TargetType: auditdomain.TargetReportBatch,
		TargetID:   "42",
		Metadata:   map[string]any{"category": "royalty", "": "dropped"},
		IPAddress:  "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	resp, err := svc.List(ctx, auditdomain.ListRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.AuditLogs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(resp.AuditLogs))
	}
	got := resp.AuditLogs[0]
	if got.ActorType != "user" || got.ActorID == nil || *got.ActorID != "admin-1" {
		t.Fatalf("unexpected actor %q %v", got.ActorType, got.ActorID)
	}
	if got.AccountID == nil || *got.AccountID != "label-a" {
		t.Fatalf("unexpected account %v", got.AccountID)
	}
	if got.TargetID == nil || *got.TargetID != "42" {
		t.Fatalf("unexpected target %v", got.TargetID)
	}
	if got.Metadata["category"] != "royalty" || got.Metadata["request_id"] != "req-1" {
		t.Fatalf("unexpected metadata %v", got.Metadata)
	}
	if _, ok := got.Metadata[""]; ok {
		t.Fatalf("empty metadata key should be dropped")
	}
	if got.UserAgent != nil {
		t.Fatalf("expected no user agent, got %v", *got.UserAgent)
	}
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	svc, _ := newAuditService(t)

	if err := svc.Record(context.Background(), auditdomain.Entry{Action: auditdomain.ActionPeriodCreated}); err != nil {
		t.Fatalf("record: %v", err)
	}
	resp, err := svc.List(context.Background(), auditdomain.ListRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(resp.AuditLogs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(resp.AuditLogs))
	}
	if resp.AuditLogs[0].ActorType != string(auditdomain.ActorTypeSystem) {
		t.Fatalf("expected system actor, got %q", resp.AuditLogs[0].ActorType)
	}
	if resp.AuditLogs[0].TargetType != "unknown" {
		t.Fatalf("expected unknown target type, got %q", resp.AuditLogs[0].TargetType)
	}
}

func TestRecordRequiresAction(t *testing.T) {
	svc, _ := newAuditService(t)
	if err := svc.Record(context.Background(), auditdomain.Entry{Action: "  "}); !errors.Is(err, auditdomain.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestListScopesByAccountAndFilters(t *testing.T) {
	svc, clk := newAuditService(t)
	first := adminContext("label-a", "admin-1")
	other := adminContext("label-b", "admin-2")

	for _, action := range []string{auditdomain.ActionPeriodCreated, auditdomain.ActionPeriodToggled, auditdomain.ActionReportDeleted} {
		if err := svc.Record(first, auditdomain.Entry{Action: action, TargetType: auditdomain.TargetPeriod}); err != nil {
			t.Fatalf("record: %v", err)
		}
		clk.Advance(time.Minute)
	}
	if err := svc.Record(other, auditdomain.Entry{Action: auditdomain.ActionPeriodCreated}); err != nil {
		t.Fatalf("record: %v", err)
	}

	all, err := svc.List(first, auditdomain.ListRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if all.Pagination.TotalCount != 3 {
		t.Fatalf("expected 3 logs for label-a, got %d", all.Pagination.TotalCount)
	}
	if all.AuditLogs[0].Action != auditdomain.ActionReportDeleted {
		t.Fatalf("expected newest first, got %q", all.AuditLogs[0].Action)
	}

	filtered, err := svc.List(first, auditdomain.ListRequest{Action: auditdomain.ActionPeriodToggled})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(filtered.AuditLogs) != 1 {
		t.Fatalf("expected 1 toggled log, got %d", len(filtered.AuditLogs))
	}

	paged, err := svc.List(first, auditdomain.ListRequest{Pagination: pagination.Pagination{Page: 2, Limit: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paged.AuditLogs) != 1 || !paged.Pagination.HasPrev || paged.Pagination.HasNext {
		t.Fatalf("unexpected page %+v", paged.Pagination)
	}
}

func TestListValidation(t *testing.T) {
	svc, _ := newAuditService(t)
	ctx := context.Background()

	start := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	if _, err := svc.List(ctx, auditdomain.ListRequest{StartAt: &start, EndAt: &end}); !errors.Is(err, auditdomain.ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	if _, err := svc.List(ctx, auditdomain.ListRequest{Pagination: pagination.Pagination{Limit: 251}}); !errors.Is(err, auditdomain.ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if _, err := svc.List(ctx, auditdomain.ListRequest{Pagination: pagination.Pagination{Page: -1}}); !errors.Is(err, auditdomain.ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
}

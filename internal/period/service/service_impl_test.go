package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/internal/clock"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	periodrepo "github.com/smallbiznis/tunedesk/internal/period/repository"
	"github.com/smallbiznis/tunedesk/pkg/db"
	"github.com/smallbiznis/tunedesk/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type periodFixture struct {
	db    *gorm.DB
	svc   perioddomain.Service
	clock *clock.FakeClock
}

func newPeriodFixture(t *testing.T) *periodFixture {
	t.Helper()
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&perioddomain.ReportingPeriod{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := conn.Exec(`CREATE TABLE report_batches (id INTEGER PRIMARY KEY, period_id INTEGER NOT NULL)`).Error; err != nil {
		t.Fatalf("create report_batches: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))
	return &periodFixture{
		db:    conn,
		clock: clk,
		svc: New(Params{
			DB:    conn,
			Log:   zap.NewNop(),
			GenID: node,
			Repo:  periodrepo.Provide(),
			Clock: clk,
		}),
	}
}

func (f *periodFixture) create(t *testing.T, label, kind string) *perioddomain.Response {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), perioddomain.CreateRequest{
		Label:       label,
		DisplayName: label + " statement",
		Kind:        kind,
	})
	if err != nil {
		t.Fatalf("create %s/%s: %v", label, kind, err)
	}
	f.clock.Advance(time.Minute)
	return resp
}

func TestCreateValidates(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  perioddomain.CreateRequest
		want error
	}{
		{"bad label format", perioddomain.CreateRequest{Label: "January", DisplayName: "Jan", Kind: "royalty"}, perioddomain.ErrInvalidLabel},
		{"empty display name", perioddomain.CreateRequest{Label: "Jan-24", DisplayName: "  ", Kind: "royalty"}, perioddomain.ErrInvalidDisplayName},
		{"unknown kind", perioddomain.CreateRequest{Label: "Jan-24", DisplayName: "Jan", Kind: "mcn"}, perioddomain.ErrInvalidKind},
	}
	for _, tc := range cases {
		if _, err := f.svc.Create(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	created := f.create(t, "Jan-24", "Royalty")
	if created.Kind != perioddomain.KindRoyalty || !created.IsActive {
		t.Fatalf("unexpected period %+v", created)
	}
}

func TestCreateRejectsDuplicateLabelAndKind(t *testing.T) {
	f := newPeriodFixture(t)
	f.create(t, "Jan-24", "royalty")
	f.create(t, "Jan-24", "analytics")

	_, err := f.svc.Create(context.Background(), perioddomain.CreateRequest{
		Label: "Jan-24", DisplayName: "again", Kind: "royalty",
	})
	if !errors.Is(err, perioddomain.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestListPaginatesAndFilters(t *testing.T) {
	f := newPeriodFixture(t)
	for _, label := range []string{"Jan-24", "Feb-24", "Mar-24"} {
		f.create(t, label, "royalty")
	}
	f.create(t, "Jan-24", "bonus")

	resp, err := f.svc.List(context.Background(), perioddomain.ListRequest{
		Pagination: pagination.Pagination{Page: 1, Limit: 2},
		Kind:       "royalty",
		SortBy:     "label",
		SortOrder:  "asc",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Pagination.TotalCount != 3 || resp.Pagination.TotalPages != 2 || !resp.Pagination.HasNext {
		t.Fatalf("unexpected pagination %+v", resp.Pagination)
	}
	if len(resp.Periods) != 2 || resp.Periods[0].Label != "Feb-24" || resp.Periods[1].Label != "Jan-24" {
		t.Fatalf("unexpected periods %+v", resp.Periods)
	}

	if _, err := f.svc.List(context.Background(), perioddomain.ListRequest{SortBy: "id"}); !errors.Is(err, perioddomain.ErrInvalidSortField) {
		t.Fatalf("expected invalid sort field, got %v", err)
	}
	if _, err := f.svc.List(context.Background(), perioddomain.ListRequest{Pagination: pagination.Pagination{Limit: 101}}); !errors.Is(err, perioddomain.ErrInvalidLimit) {
		t.Fatalf("expected invalid limit, got %v", err)
	}
}

func TestGetActiveAndDeactivate(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()
	created := f.create(t, "Apr-24", "analytics")
	id, _ := perioddomain.ParseID(created.ID)

	if _, err := f.svc.GetActive(ctx, id); err != nil {
		t.Fatalf("expected active period, got %v", err)
	}

	resp, err := f.svc.Deactivate(ctx, created.ID)
	if err != nil || resp.IsActive {
		t.Fatalf("deactivate: %+v %v", resp, err)
	}
	if _, err := f.svc.Deactivate(ctx, created.ID); err != nil {
		t.Fatalf("deactivate must be idempotent, got %v", err)
	}
	if _, err := f.svc.GetActive(ctx, id); !errors.Is(err, perioddomain.ErrInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
	if _, err := f.svc.GetActive(ctx, snowflake.ID(12345)); !errors.Is(err, perioddomain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	toggled, err := f.svc.ToggleStatus(ctx, created.ID)
	if err != nil || !toggled.IsActive {
		t.Fatalf("toggle: %+v %v", toggled, err)
	}
	if _, err := f.svc.Get(ctx, "not-a-number"); !errors.Is(err, perioddomain.ErrInvalidID) {
		t.Fatalf("expected invalid id, got %v", err)
	}
}

func TestUpdateRejectsRelabelWhenInUse(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()
	created := f.create(t, "May-24", "royalty")

	name := "May 2024"
	updated, err := f.svc.Update(ctx, perioddomain.UpdateRequest{ID: created.ID, DisplayName: &name})
	if err != nil || updated.DisplayName != name {
		t.Fatalf("update display name: %+v %v", updated, err)
	}

	if err := f.db.Exec(`INSERT INTO report_batches (id, period_id) VALUES (1, ?)`, created.ID).Error; err != nil {
		t.Fatalf("insert batch: %v", err)
	}
	label := "Jun-24"
	if _, err := f.svc.Update(ctx, perioddomain.UpdateRequest{ID: created.ID, Label: &label}); !errors.Is(err, perioddomain.ErrPeriodInUse) {
		t.Fatalf("expected period in use, got %v", err)
	}
	if _, err := f.svc.Update(ctx, perioddomain.UpdateRequest{ID: created.ID}); !errors.Is(err, perioddomain.ErrEmptyUpdate) {
		t.Fatalf("expected empty update, got %v", err)
	}
}

func TestGroupedAndStats(t *testing.T) {
	f := newPeriodFixture(t)
	ctx := context.Background()
	f.create(t, "Jan-24", "analytics")
	f.create(t, "Jan-24", "royalty")
	bonus := f.create(t, "Jan-24", "bonus")
	if _, err := f.svc.Deactivate(ctx, bonus.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	grouped, err := f.svc.ListActiveGrouped(ctx)
	if err != nil {
		t.Fatalf("grouped: %v", err)
	}
	if len(grouped.Analytics) != 1 || len(grouped.Royalty) != 1 || len(grouped.Bonus) != 0 {
		t.Fatalf("unexpected grouping %+v", grouped)
	}

	withInactive, err := f.svc.ListActiveByKind(ctx, "bonus", true)
	if err != nil || len(withInactive) != 1 {
		t.Fatalf("by kind including inactive: %+v %v", withInactive, err)
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Active != 2 || stats.Inactive != 1 || len(stats.ByKind) != 3 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tunedesk/internal/clock"
	"github.com/smallbiznis/tunedesk/internal/config"
	perioddomain "github.com/smallbiznis/tunedesk/internal/period/domain"
	periodrepo "github.com/smallbiznis/tunedesk/internal/period/repository"
	periodservice "github.com/smallbiznis/tunedesk/internal/period/service"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	reportrepo "github.com/smallbiznis/tunedesk/internal/report/repository"
	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"github.com/smallbiznis/tunedesk/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	clock    *clock.FakeClock
	periods  perioddomain.Service
	reports  reportdomain.Service
	insights reportdomain.InsightService
	repo     reportdomain.Repository
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&perioddomain.ReportingPeriod{}, &reportdomain.ReportBatch{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	limits := config.NewStaticReportConfigHolder(config.DefaultReportConfig())
	repo := reportrepo.Provide()

	periods := periodservice.New(periodservice.Params{
		DB:    conn,
		Log:   log,
		GenID: node,
		Repo:  periodrepo.Provide(),
		Clock: clk,
	})
	reports := New(Params{
		DB:       conn,
		Log:      log,
		GenID:    node,
		Repo:     repo,
		Periods:  periods,
		Pipeline: ingest.New(ingest.Params{Log: log}),
		Limits:   limits,
		Clock:    clk,
	})
	insights := NewInsights(InsightParams{DB: conn, Log: log, Repo: repo, Limits: limits})

	return &fixture{
		db:       conn,
		clock:    clk,
		periods:  periods,
		reports:  reports,
		insights: insights,
		repo:     repo,
		dir:      t.TempDir(),
	}
}

func (f *fixture) period(t *testing.T, label, kind string) string {
	t.Helper()
	resp, err := f.periods.Create(context.Background(), perioddomain.CreateRequest{
		Label:       label,
		DisplayName: label,
		Kind:        kind,
	})
	if err != nil {
		t.Fatalf("create period: %v", err)
	}
	return resp.ID
}

// writeCSV writes a file whose header row is the full schema of category and
// whose rows are given as normalized field name -> raw cell.
func (f *fixture) writeCSV(t *testing.T, category schema.Category, rows ...map[string]string) string {
	t.Helper()
	fields, err := schema.FieldsFor(category)
	if err != nil {
		t.Fatalf("fields: %v", err)
	}

	var b strings.Builder
	headers := make([]string, len(fields))
	for i, field := range fields {
		headers[i] = field.Header
	}
	b.WriteString(joinCSV(headers))
	for _, row := range rows {
		cells := make([]string, len(fields))
		for i, field := range fields {
			cells[i] = row[field.Name]
		}
		b.WriteString(joinCSV(cells))
	}

	file, err := os.CreateTemp(f.dir, string(category)+"-*.csv")
	if err != nil {
		t.Fatalf("create csv: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString(b.String()); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return file.Name()
}

func (f *fixture) upload(t *testing.T, periodID string, category schema.Category, path string) *reportdomain.BatchResponse {
	t.Helper()
	resp, err := f.reports.Upload(context.Background(), reportdomain.UploadRequest{
		PeriodID:         periodID,
		Category:         string(category),
		OriginalFileName: filepath.Base(path),
		FilePath:         path,
		UploadedBy:       "admin-1",
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	f.clock.Advance(time.Minute)
	return resp
}

func joinCSV(cells []string) string {
	quoted := make([]string, len(cells))
	for i, cell := range cells {
		if strings.ContainsAny(cell, ",\"\n") {
			cell = `"` + strings.ReplaceAll(cell, `"`, `""`) + `"`
		}
		quoted[i] = cell
	}
	return strings.Join(quoted, ",") + "\n"
}

package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gsqlite "github.com/glebarez/sqlite"
	"github.com/smallbiznis/tunedesk/internal/config"
	obscontext "github.com/smallbiznis/tunedesk/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func fieldValue(entry observer.LoggedEntry, key string) any {
	return entry.ContextMap()[key]
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	if _, err := New(nil, Config{Level: "loud"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithAccountID(ctx, "acct-1")
	ctx = obscontext.WithActor(ctx, "admin", "7")

	WithContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := fieldValue(entries[0], "request_id"); got != "req-1" {
		t.Fatalf("unexpected request_id %v", got)
	}
	if got := fieldValue(entries[0], "account_id"); got != "acct-1" {
		t.Fatalf("unexpected account_id %v", got)
	}
	if got := fieldValue(entries[0], "actor_id"); got != "7" {
		t.Fatalf("unexpected actor_id %v", got)
	}
}

func TestGinMiddlewareLogsRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observe(t)

	router := gin.New()
	router.Use(GinMiddleware(MiddlewareConfig{}))
	router.GET("/api/reports/:id", func(c *gin.Context) {
		c.Set("report_category", "royalty")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reports/42", nil)
	req.Header.Set("X-Request-Id", "abc")
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "abc" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("expected one http_request entry, got %d", len(entries))
	}
	if got := fieldValue(entries[0], "route"); got != "/api/reports/:id" {
		t.Fatalf("unexpected route %v", got)
	}
	if got := fieldValue(entries[0], "report_category"); got != "royalty" {
		t.Fatalf("unexpected category %v", got)
	}
}

func TestGinMiddlewareGeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observe(t)

	router := gin.New()
	router.Use(GinMiddleware(MiddlewareConfig{}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestGormLoggerTrace(t *testing.T) {
	logs := observe(t)
	l := NewGormLogger(GormConfig{Level: gormlogger.Warn, SlowThreshold: time.Second})

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "UPDATE report_batches SET status = 'failed'", 1
	}, errors.New("boom"))
	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return "SELECT 1", 1
	}, nil)
	l.Trace(context.Background(), time.Now().Add(-2*time.Second), func() (string, int64) {
		return "SELECT * FROM report_batches", 3
	}, nil)

	entries := logs.FilterMessage("gorm.query").All()
	if len(entries) != 2 {
		t.Fatalf("expected the failing and the slow query, got %d", len(entries))
	}
	if entries[0].Level != zap.ErrorLevel || fieldValue(entries[0], "operation") != "UPDATE" {
		t.Fatalf("unexpected failing query entry %+v", entries[0])
	}
	if entries[1].Level != zap.WarnLevel || fieldValue(entries[1], "slow") != true {
		t.Fatalf("unexpected slow query entry %+v", entries[1])
	}

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "DELETE FROM x", 0 }, errors.New("boom"))
	if logs.FilterMessage("gorm.query").Len() != 2 {
		t.Fatalf("silent logger must not log")
	}
}

func TestGormLoggerKeepsMissingRowsQuiet(t *testing.T) {
	logs := observe(t)
	cfg := GormConfigFrom(config.Config{DBLogLevel: "warn", DBSlowQueryMillis: 200})
	conn, err := gorm.Open(gsqlite.Open("file::memory:"), &gorm.Config{Logger: NewGormLogger(cfg)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	type track struct {
		ID    int64
		Title string
	}
	if err := conn.AutoMigrate(&track{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var found track
	if err := conn.First(&found, 42).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
	if n := logs.FilterLevelExact(zap.ErrorLevel).Len(); n != 0 {
		t.Fatalf("a missing row must not log at error level, got %d entries", n)
	}

	cfg.LogRecordNotFound = true
	l := NewGormLogger(cfg)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT * FROM tracks", 0 }, gorm.ErrRecordNotFound)
	if n := logs.FilterLevelExact(zap.ErrorLevel).Len(); n != 1 {
		t.Fatalf("expected the miss to be logged when requested, got %d", n)
	}
}

func TestGormConfigFrom(t *testing.T) {
	cases := map[string]gormlogger.LogLevel{
		"":       gormlogger.Warn,
		"silent": gormlogger.Silent,
		"ERROR":  gormlogger.Error,
		"debug":  gormlogger.Info,
		"loud":   gormlogger.Warn,
	}
	for level, want := range cases {
		cfg := GormConfigFrom(config.Config{DBLogLevel: level, DBSlowQueryMillis: 250})
		if cfg.Level != want {
			t.Fatalf("level %q: got %v want %v", level, cfg.Level, want)
		}
		if cfg.SlowThreshold != 250*time.Millisecond || cfg.LogRecordNotFound {
			t.Fatalf("unexpected config %+v", cfg)
		}
	}
}

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"":                                     "UNKNOWN",
		"select * from reporting_periods":      "SELECT",
		"WITH t AS (SELECT 1) SELECT * FROM t": "SELECT",
		"(INSERT INTO report_batches)":         "INSERT",
		"PRAGMA foreign_keys":                  "UNKNOWN",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", sql, got, want)
		}
	}
}

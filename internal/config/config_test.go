package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := Load()
	assert.Equal(t, "tunedesk", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int64(50<<20), cfg.Upload.MaxBytes)
	assert.False(t, cfg.Upload.StrictHeaders)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.InDelta(t, 10, cfg.RateLimit.UploadsPerMinute, 1e-9)
	assert.Equal(t, 300, cfg.RateLimit.UploadLockTTLSeconds)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30, cfg.Scheduler.StaleAfterMinutes)
	assert.Equal(t, "warn", cfg.DBLogLevel)
	assert.Equal(t, 200, cfg.DBSlowQueryMillis)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", " Production ")
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("UPLOAD_MAX_BYTES", "1024")
	t.Setenv("REPORT_STRICT_HEADERS", "yes")
	t.Setenv("RATE_LIMIT_ENABLED", "on")
	t.Setenv("UPLOAD_RATE_PER_MINUTE", "2.5")
	t.Setenv("UPLOAD_BURST", "not-a-number")
	t.Setenv("DATABASE_SLOW_QUERY_MS", "50")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, int64(1024), cfg.Upload.MaxBytes)
	assert.True(t, cfg.Upload.StrictHeaders)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.InDelta(t, 2.5, cfg.RateLimit.UploadsPerMinute, 1e-9)
	assert.Equal(t, 5, cfg.RateLimit.UploadBurst)
	assert.Equal(t, 50, cfg.DBSlowQueryMillis)
}

func TestPageLimitClamp(t *testing.T) {
	limit := PageLimit{Default: 10, Max: 100}

	got, ok := limit.Clamp(0)
	assert.True(t, ok)
	assert.Equal(t, 10, got)

	got, ok = limit.Clamp(100)
	assert.True(t, ok)
	assert.Equal(t, 100, got)

	_, ok = limit.Clamp(101)
	assert.False(t, ok)
	_, ok = limit.Clamp(-1)
	assert.False(t, ok)
}

func TestReportConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	body := "reports:\n  data:\n    default: 25\n    max: 250\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tunedesk.yml"), []byte(body), 0o600))

	holder, err := NewReportConfigHolder()
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, PageLimit{Default: 25, Max: 250}, cfg.Data)
	assert.Equal(t, DefaultReportConfig().Search, cfg.Search)
}

func TestReportConfigHolderRejectsInvalidLimits(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	body := "reports:\n  search:\n    default: 50\n    max: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tunedesk.yml"), []byte(body), 0o600))

	_, err := NewReportConfigHolder()
	assert.Error(t, err)
}

func TestValidateReportConfig(t *testing.T) {
	assert.NoError(t, validateReportConfig(DefaultReportConfig()))

	cfg := DefaultReportConfig()
	cfg.TopTracks = PageLimit{Default: 0, Max: 10}
	assert.Error(t, validateReportConfig(cfg))
}

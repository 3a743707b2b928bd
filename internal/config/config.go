package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBLogLevel        string
	DBSlowQueryMillis int

	Upload    UploadConfig
	RateLimit RateLimitConfig
	Scheduler SchedulerConfig
}

// UploadConfig controls the report file intake.
type UploadConfig struct {
	Dir           string
	MaxBytes      int64
	StrictHeaders bool
}

// RateLimitConfig controls the redis-backed upload limiter. Disabled means unlimited.
type RateLimitConfig struct {
	Enabled              bool
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	UploadsPerMinute     float64
	UploadBurst          int
	UploadLockTTLSeconds int
}

// SchedulerConfig controls the background sweep of batches left unfinished by a crash.
type SchedulerConfig struct {
	Enabled           bool
	IntervalSeconds   int
	StaleAfterMinutes int
	BatchSize         int
}

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewReportConfigHolder),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "tunedesk"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "tunedesk"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "tunedesk.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBLogLevel:        getenv("DATABASE_LOG_LEVEL", "warn"),
		DBSlowQueryMillis: getenvInt("DATABASE_SLOW_QUERY_MS", 200),
		Upload: UploadConfig{
			Dir:           getenv("UPLOAD_DIR", "./uploads/reports"),
			MaxBytes:      getenvInt64("UPLOAD_MAX_BYTES", 50<<20),
			StrictHeaders: getenvBool("REPORT_STRICT_HEADERS", false),
		},
		RateLimit: RateLimitConfig{
			Enabled:              getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:            getenv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:        getenv("REDIS_PASSWORD", ""),
			RedisDB:              getenvInt("REDIS_DB", 0),
			UploadsPerMinute:     getenvFloat("UPLOAD_RATE_PER_MINUTE", 10),
			UploadBurst:          getenvInt("UPLOAD_BURST", 5),
			UploadLockTTLSeconds: getenvInt("UPLOAD_LOCK_TTL_SECONDS", 300),
		},
		Scheduler: SchedulerConfig{
			Enabled:           getenvBool("SCHEDULER_ENABLED", true),
			IntervalSeconds:   getenvInt("SCHEDULER_INTERVAL_SECONDS", 60),
			StaleAfterMinutes: getenvInt("SCHEDULER_STALE_AFTER_MINUTES", 30),
			BatchSize:         getenvInt("SCHEDULER_BATCH_SIZE", 50),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/tunedesk/internal/report/ingest"
	"gorm.io/gorm"
)

const (
	IngestReasonFileNotFound      = "file_not_found"
	IngestReasonParseFailure      = "parse_failure"
	IngestReasonUnsupportedFormat = "unsupported_format"
	IngestReasonMissingHeaders    = "missing_headers"
	IngestReasonDeadlineExceeded  = "deadline_exceeded"
	IngestReasonDBLockTimeout     = "db_lock_timeout"
	IngestReasonUniqueViolation   = "unique_violation"
	IngestReasonDB                = "db"
	IngestReasonUnknown           = "unknown"
)

const (
	RowOutcomeMapped  = "mapped"
	RowOutcomeSkipped = "skipped"
	RowOutcomeCoerced = "coerced"
)

// IngestMetrics captures report ingestion health as Prometheus series.
type IngestMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rows        *prometheus.CounterVec
	failures    *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

var (
	ingestMetricsOnce sync.Once
	ingestMetrics     *IngestMetrics
)

// Ingest returns the process-wide ingestion metrics registered on the default registry.
func Ingest(cfg Config) *IngestMetrics {
	ingestMetricsOnce.Do(func() {
		ingestMetrics = newIngestMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ingestMetrics
}

// ResetIngestMetricsForTest resets the ingestion metrics singleton for tests.
func ResetIngestMetricsForTest() {
	ingestMetricsOnce = sync.Once{}
	ingestMetrics = nil
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "tunedesk"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func newIngestMetrics(registerer prometheus.Registerer, cfg Config) *IngestMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tunedesk_report_ingest_total",
		Help:        "Report ingestions by category and final status.",
		ConstLabels: labels,
	}, []string{"category", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "tunedesk_report_ingest_duration_seconds",
		Help:        "Wall time spent parsing and persisting a report file.",
		ConstLabels: labels,
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"category"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tunedesk_report_ingest_rows_total",
		Help:        "Report rows by mapping outcome.",
		ConstLabels: labels,
	}, []string{"category", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tunedesk_report_ingest_failures_total",
		Help:        "Failed report ingestions by reason.",
		ConstLabels: labels,
	}, []string{"category", "reason"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "tunedesk_report_batch_transitions_total",
		Help:        "Report batch status transitions.",
		ConstLabels: labels,
	}, []string{"from", "to"})

	registerer.MustRegister(runs, duration, rows, failures, transitions)

	return &IngestMetrics{
		runs:        runs,
		duration:    duration,
		rows:        rows,
		failures:    failures,
		transitions: transitions,
	}
}

// ObserveRun records the outcome and latency of one ingestion.
func (m *IngestMetrics) ObserveRun(category, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(category, status).Inc()
	m.duration.WithLabelValues(category).Observe(elapsed.Seconds())
}

// AddRows records how the rows of a file were consumed.
func (m *IngestMetrics) AddRows(category string, stats ingest.Stats) {
	if m == nil {
		return
	}
	mapped := stats.RowsRead - stats.RowsSkipped
	if mapped > 0 {
		m.rows.WithLabelValues(category, RowOutcomeMapped).Add(float64(mapped))
	}
	if stats.RowsSkipped > 0 {
		m.rows.WithLabelValues(category, RowOutcomeSkipped).Add(float64(stats.RowsSkipped))
	}
	if stats.CoercedCells > 0 {
		m.rows.WithLabelValues(category, RowOutcomeCoerced).Add(float64(stats.CoercedCells))
	}
}

// IncFailure records a failed ingestion classified by reason.
func (m *IngestMetrics) IncFailure(category string, err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(category, ClassifyIngestFailure(err)).Inc()
}

// IncTransition records a batch status change.
func (m *IngestMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ClassifyIngestFailure maps ingestion errors to low-cardinality reasons.
func ClassifyIngestFailure(err error) string {
	switch {
	case err == nil:
		return IngestReasonUnknown
	case errors.Is(err, ingest.ErrFileNotFound):
		return IngestReasonFileNotFound
	case errors.Is(err, ingest.ErrParseFailure):
		return IngestReasonParseFailure
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return IngestReasonUnsupportedFormat
	case errors.Is(err, ingest.ErrMissingHeaders):
		return IngestReasonMissingHeaders
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return IngestReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return IngestReasonDBLockTimeout
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505"):
		return IngestReasonUniqueViolation
	case isDBError(err):
		return IngestReasonDB
	default:
		return IngestReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}

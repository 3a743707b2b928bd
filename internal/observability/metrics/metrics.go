package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	reportUploads   metric.Int64Counter
	recordsIngested metric.Int64Counter
	recordReads     metric.Int64Counter
	periodChanges   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tunedesk"
	}
	meter := provider.Meter(name)

	reportUploads, err := meter.Int64Counter("tunedesk_report_uploads_total")
	if err != nil {
		return nil, err
	}
	recordsIngested, err := meter.Int64Counter("tunedesk_report_records_ingested_total")
	if err != nil {
		return nil, err
	}
	recordReads, err := meter.Int64Counter("tunedesk_report_record_reads_total")
	if err != nil {
		return nil, err
	}
	periodChanges, err := meter.Int64Counter("tunedesk_period_changes_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		reportUploads:   reportUploads,
		recordsIngested: recordsIngested,
		recordReads:     recordReads,
		periodChanges:   periodChanges,
	}, nil
}

// RecordUpload counts a finished upload by category and final status.
func (m *Metrics) RecordUpload(ctx context.Context, category, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("category", strings.TrimSpace(category)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.reportUploads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordIngestedRecords adds the number of records stored for a category.
func (m *Metrics) RecordIngestedRecords(ctx context.Context, category string, count int) {
	if m == nil || count <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("category", strings.TrimSpace(category)))
	m.recordsIngested.Add(ctx, int64(count), metric.WithAttributes(attrs...))
}

// RecordRead counts a record page served, by read kind (data or search).
func (m *Metrics) RecordRead(ctx context.Context, category, kind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("category", strings.TrimSpace(category)),
		attribute.String("read_kind", strings.TrimSpace(kind)),
	)
	m.recordReads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPeriodChange counts period administration actions.
func (m *Metrics) RecordPeriodChange(ctx context.Context, kind, action string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("period_kind", strings.TrimSpace(kind)),
		attribute.String("action", strings.TrimSpace(action)),
	)
	m.periodChanges.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"category":    {},
	"status":      {},
	"read_kind":   {},
	"period_kind": {},
	"action":      {},
	"endpoint":    {},
	"status_code": {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}

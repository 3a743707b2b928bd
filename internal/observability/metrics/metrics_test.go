package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("category", "royalty"),
		attribute.String("batch_id", "456"),
		attribute.String("status", "completed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "category" && attrs[1].Key != "category" {
		t.Fatalf("expected category to be retained")
	}
	if attrs[0].Key != "status" && attrs[1].Key != "status" {
		t.Fatalf("expected status to be retained")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordUpload(context.Background(), "royalty", "completed")
	var im *IngestMetrics
	im.IncTransition("pending", "processing")
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/smallbiznis/tunedesk/internal/report/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// HeaderReport compares the header row of a file with the category schema.
type HeaderReport struct {
	Valid    bool     `json:"isValid" yaml:"isValid"`
	Missing  []string `json:"missingHeaders" yaml:"missingHeaders"`
	Extra    []string `json:"extraHeaders" yaml:"extraHeaders"`
	Expected []string `json:"expectedHeaders" yaml:"expectedHeaders"`
	Actual   []string `json:"actualHeaders" yaml:"actualHeaders"`
}

// Stats describes how the rows of a file were consumed.
type Stats struct {
	RowsRead     int `json:"rowsRead" yaml:"rowsRead"`
	RowsSkipped  int `json:"rowsSkipped" yaml:"rowsSkipped"`
	CoercedCells int `json:"coercedCells" yaml:"coercedCells"`
}

// Result is the outcome of a successful ingestion.
type Result struct {
	Category schema.Category `json:"category" yaml:"category"`
	Records  []schema.Record `json:"-" yaml:"-"`
	Summary  Summary         `json:"summary" yaml:"summary"`
	Stats    Stats           `json:"stats" yaml:"stats"`
}

type Params struct {
	fx.In

	Log *zap.Logger
}

// Pipeline streams report files into normalized records.
type Pipeline struct {
	log    *zap.Logger
	tracer trace.Tracer
}

func New(p Params) *Pipeline {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		log:    log.Named("report.ingest"),
		tracer: otel.Tracer("tunedesk/ingest"),
	}
}

// ValidateHeaders reads only the header row of path.
func (p *Pipeline) ValidateHeaders(ctx context.Context, path string, c schema.Category) (*HeaderReport, error) {
	expected, err := schema.Headers(c)
	if err != nil {
		return nil, err
	}

	_, span := p.tracer.Start(ctx, "ingest.validate_headers", trace.WithAttributes(
		attribute.String("report.category", c.String()),
	))
	defer span.End()

	src, err := openSource(path)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer src.Close()

	actual, err := src.Header()
	if errors.Is(err, io.EOF) {
		actual = []string{}
	} else if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	return compareHeaders(expected, actual), nil
}

func compareHeaders(expected, actual []string) *HeaderReport {
	actualSet := make(map[string]struct{}, len(actual))
	for _, h := range actual {
		actualSet[h] = struct{}{}
	}
	expectedSet := make(map[string]struct{}, len(expected))
	for _, h := range expected {
		expectedSet[h] = struct{}{}
	}

	report := &HeaderReport{
		Missing:  []string{},
		Extra:    []string{},
		Expected: expected,
		Actual:   actual,
	}
	for _, h := range expected {
		if _, ok := actualSet[h]; !ok {
			report.Missing = append(report.Missing, h)
		}
	}
	for _, h := range actual {
		if _, ok := expectedSet[h]; !ok {
			report.Extra = append(report.Extra, h)
		}
	}
	report.Valid = len(report.Missing) == 0
	return report
}

// Ingest reads every row of path in order. On error no records are returned.
func (p *Pipeline) Ingest(ctx context.Context, path string, c schema.Category) (*Result, error) {
	if !c.Valid() {
		return nil, schema.ErrUnknownCategory
	}

	ctx, span := p.tracer.Start(ctx, "ingest.file", trace.WithAttributes(
		attribute.String("report.category", c.String()),
	))
	defer span.End()

	result, err := p.ingest(ctx, path, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		p.log.Warn("ingest failed",
			zap.String("category", c.String()),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("report.rows_read", result.Stats.RowsRead),
		attribute.Int("report.records", len(result.Records)),
	)
	if result.Stats.CoercedCells > 0 {
		p.log.Warn("numeric cells coerced to zero",
			zap.String("category", c.String()),
			zap.String("path", path),
			zap.Int("cells", result.Stats.CoercedCells),
		)
	}
	p.log.Info("ingest completed",
		zap.String("category", c.String()),
		zap.Int("rows_read", result.Stats.RowsRead),
		zap.Int("rows_skipped", result.Stats.RowsSkipped),
		zap.Int("records", len(result.Records)),
	)
	return result, nil
}

func (p *Pipeline) ingest(ctx context.Context, path string, c schema.Category) (*Result, error) {
	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	result := &Result{Category: c, Records: []schema.Record{}}

	header, err := src.Header()
	if errors.Is(err, io.EOF) {
		result.Summary = Summarize(result.Records, c)
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}

	mapper, err := schema.NewMapper(c, header)
	if err != nil {
		return nil, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		result.Stats.RowsRead++

		rec, stats := mapper.Map(row)
		result.Stats.CoercedCells += stats.Coerced
		if len(rec) == 0 {
			result.Stats.RowsSkipped++
			continue
		}
		result.Records = append(result.Records, rec)
	}

	result.Summary = Summarize(result.Records, c)
	return result, nil
}

package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	"github.com/smallbiznis/tunedesk/internal/clock"
	obsmetrics "github.com/smallbiznis/tunedesk/internal/observability/metrics"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const JobStaleBatches = "stale_batches"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     reportdomain.Repository
	Clock    clock.Clock                  `optional:"true"`
	AuditSvc auditdomain.Service          `optional:"true"`
	Metrics  *obsmetrics.SchedulerMetrics `optional:"true"`
	Ingest   *obsmetrics.IngestMetrics    `optional:"true"`
	Config   Config                       `optional:"true"`
}

// Scheduler runs periodic maintenance over report batches.
type Scheduler struct {
	db       *gorm.DB
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	repo     reportdomain.Repository
	auditSvc auditdomain.Service
	metrics  *obsmetrics.SchedulerMetrics
	ingest   *obsmetrics.IngestMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Repo == nil {
		return nil, ErrInvalidConfig
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &Scheduler{
		db:       p.DB,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    clk,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
		ingest:   p.Ingest,
	}, nil
}

// runJob executes fn under a deadline. Timeouts are counted and logged, not returned.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	s.metrics.AddProcessed(name, run.processedCount)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	s.metrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
		)
		return nil
	}
	return err
}

// RunOnce runs every job a single time.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	return s.runJob(ctx, JobStaleBatches, s.cfg.BatchSize, s.cfg.JobTimeout, s.StaleBatchSweepJob)
}

// RunForever runs the jobs every RunInterval until ctx is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started",
		zap.Duration("interval", s.cfg.RunInterval),
		zap.Duration("stale_after", s.cfg.StaleAfter),
	)
	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

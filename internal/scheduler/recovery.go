package scheduler

import (
	"context"
	"errors"

	auditdomain "github.com/smallbiznis/tunedesk/internal/audit/domain"
	reportdomain "github.com/smallbiznis/tunedesk/internal/report/domain"
	"go.uber.org/zap"
)

const staleBatchMessage = "ingestion did not finish; the batch was abandoned"

// StaleBatchSweepJob fails batches left pending or processing past the stale threshold,
// so they stop counting as in-flight and can be uploaded again.
func (s *Scheduler) StaleBatchSweepJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	now := s.clock.Now()
	cutoff := now.Add(-s.cfg.StaleAfter)

	batches, err := s.repo.FindStale(ctx, s.db, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	var jobErr error
	for _, batch := range batches {
		err := s.repo.MarkFailed(ctx, s.db, batch.ID, staleBatchMessage, now)
		if errors.Is(err, reportdomain.ErrInvalidTransition) {
			// Finished between the scan and the update.
			continue
		}
		if err != nil {
			run.IncError()
			jobErr = errors.Join(jobErr, err)
			s.logger(ctx).Error("stale batch sweep failed",
				zap.String("batch_id", batch.ID.String()),
				zap.Error(err),
			)
			continue
		}

		run.AddProcessed(1)
		s.ingest.IncTransition(string(batch.Status), string(reportdomain.StatusFailed))
		s.logger(ctx).Warn("stale batch marked failed",
			zap.String("batch_id", batch.ID.String()),
			zap.String("category", batch.Category.String()),
			zap.String("previous_status", string(batch.Status)),
			zap.Time("last_update", batch.UpdatedAt),
		)
		s.recordExpired(ctx, batch)
	}
	return jobErr
}

func (s *Scheduler) recordExpired(ctx context.Context, batch reportdomain.ReportBatch) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     auditdomain.ActionReportExpired,
		TargetType: auditdomain.TargetReportBatch,
		TargetID:   batch.ID.String(),
		Metadata: map[string]any{
			"period_id":       batch.PeriodID.String(),
			"category":        batch.Category.String(),
			"previous_status": string(batch.Status),
		},
	})
	if err != nil {
		s.logger(ctx).Warn("audit log write failed", zap.Error(err))
	}
}

package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/integrity"
	jobmetrics "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/jobs"
)

// IntegrityScanner runs one ledger integrity scan.
type IntegrityScanner interface {
	Run(ctx context.Context, grace time.Duration) (integrity.Report, error)
}

// LedgerIntegrityJob runs the integrity scan on a schedule. Findings are
// logged by the scanner; the task only fails when the scan itself fails.
type LedgerIntegrityJob struct {
	Scanner IntegrityScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle executes the integrity task.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.Scanner == nil {
		return errors.New("ledger integrity: dependencies not configured")
	}
	var payload LedgerIntegrityPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskLedgerIntegrity)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report, err := j.Scanner.Run(ctx, time.Duration(payload.GraceMinutes)*time.Minute)
	if err != nil {
		logger.Error("ledger integrity scan", slog.String("job", TaskLedgerIntegrity), slog.Any("error", err))
		return err
	}
	metrics.Findings("imbalance", len(report.Imbalances))
	metrics.Findings("stuck_event", len(report.StuckEvents))
	if !report.Clean() {
		logger.Warn("ledger integrity findings", slog.String("job", TaskLedgerIntegrity),
			slog.Int("imbalances", len(report.Imbalances)), slog.Int("stuck_events", len(report.StuckEvents)))
	}
	return nil
}

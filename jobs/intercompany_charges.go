package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	accshared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	jobmetrics "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/jobs"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

const idempotencyScopeCharges = "intercompany_charges"

// ChargeRecorder persists a charge batch.
type ChargeRecorder interface {
	RecordCharges(ctx context.Context, batch intercompany.ChargeBatch) ([]intercompany.ChargeRecord, error)
}

// IdempotencyClaims claims and releases processing keys.
type IdempotencyClaims interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Release(ctx context.Context, key, scope string) error
}

// IntercompanyChargesJob records charge batches delivered through asynq.
type IntercompanyChargesJob struct {
	Recorder    ChargeRecorder
	Idempotency IdempotencyClaims
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewIntercompanyChargesJob wires the job.
func NewIntercompanyChargesJob(recorder ChargeRecorder, claims IdempotencyClaims, logger *slog.Logger, metrics *jobmetrics.Metrics) *IntercompanyChargesJob {
	return &IntercompanyChargesJob{Recorder: recorder, Idempotency: claims, Logger: logger, Metrics: metrics}
}

// Handle executes the task.
func (j *IntercompanyChargesJob) Handle(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.Recorder == nil {
		return errors.New("intercompany charges: dependencies not configured")
	}
	var batch intercompany.ChargeBatch
	if err := json.Unmarshal(task.Payload(), &batch); err != nil {
		j.log().Error("decode payload", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskIntercompanyCharges)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	key := batch.ReceiptID
	if batch.EventID != "" {
		key = batch.EventID
	}
	if j.Idempotency != nil {
		if err := j.Idempotency.CheckAndInsert(ctx, key, idempotencyScopeCharges); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				j.log().Info("charge batch already handled", slog.String("receipt_id", batch.ReceiptID), slog.String("key", key))
				return nil
			}
			return err
		}
	}

	records, err := j.Recorder.RecordCharges(ctx, batch)
	if errors.Is(err, intercompany.ErrBatchSuperseded) {
		j.log().Info("receipt event no longer active, charges skipped", slog.String("receipt_id", batch.ReceiptID), slog.String("event_id", batch.EventID))
		return nil
	}
	if err != nil {
		if j.Idempotency != nil {
			if relErr := j.Idempotency.Release(context.WithoutCancel(ctx), key, idempotencyScopeCharges); relErr != nil {
				j.log().Warn("release idempotency key", slog.String("key", key), slog.Any("error", relErr))
			}
		}
		j.log().Error("record charges", slog.String("receipt_id", batch.ReceiptID), slog.Any("error", err))
		if errors.Is(err, accshared.ErrInvalidPayload) {
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}
	j.log().Info("charges recorded", slog.String("receipt_id", batch.ReceiptID), slog.Int("records", len(records)))
	return nil
}

func (j *IntercompanyChargesJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *IntercompanyChargesJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskIntercompanyCharges))
	}
	return slog.Default().With(slog.String("job", TaskIntercompanyCharges))
}

// KeyPruner deletes idempotency keys older than a retention window.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob prunes the idempotency table on a schedule.
type IdempotencyCleanupJob struct {
	Store   KeyPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle executes the cleanup task.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: dependencies not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionHours <= 0 {
		payload.RetentionHours = 24 * 30
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	removed, err := j.Store.Cleanup(ctx, time.Duration(payload.RetentionHours)*time.Hour)
	if err != nil {
		logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	logger.Info("idempotency keys pruned", slog.Int64("removed", removed), slog.Int("retention_hours", payload.RetentionHours))
	return nil
}

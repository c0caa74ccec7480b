package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	jobmetrics "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIntercompanyCharges records the charge records of a posted intercompany receipt.
	TaskIntercompanyCharges = "intercompany:charges"
	// TaskIdempotencyCleanup prunes old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskLedgerIntegrity scans for imbalanced journals and stuck events.
	TaskLedgerIntegrity = "ledger:integrity"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// NewIntercompanyChargesTask wraps a charge batch. The task id is derived from
// the receipt event so a batch is queued at most once while it is retained.
func NewIntercompanyChargesTask(batch intercompany.ChargeBatch) (*asynq.Task, error) {
	if batch.ReceiptID == "" {
		return nil, fmt.Errorf("intercompany charges: receipt id required")
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(8)}
	if batch.EventID != "" {
		opts = append(opts, asynq.TaskID("ic-charges:"+batch.EventID))
	}
	return asynq.NewTask(TaskIntercompanyCharges, data, opts...), nil
}

// IdempotencyCleanupPayload configures the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}

// LedgerIntegrityPayload sets how old an unprocessed event must be to be
// reported. Zero uses the checker default.
type LedgerIntegrityPayload struct {
	GraceMinutes int `json:"grace_minutes,omitempty"`
}

// NewLedgerIntegrityTask constructs the integrity scan task.
func NewLedgerIntegrityTask(graceMinutes int) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerIntegrityPayload{GraceMinutes: graceMinutes})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.Queue(QueueDefault)), nil
}

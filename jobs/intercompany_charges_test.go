package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/ledgertest"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	jobmetrics "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/jobs"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

type memoryClaims struct {
	mu       sync.Mutex
	keys     map[string]bool
	released []string
}

func newMemoryClaims() *memoryClaims { return &memoryClaims{keys: map[string]bool{}} }

func (m *memoryClaims) CheckAndInsert(_ context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[scope+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[scope+"/"+key] = true
	return nil
}

func (m *memoryClaims) Release(_ context.Context, key, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scope+"/"+key)
	m.released = append(m.released, key)
	return nil
}

type failingRecorder struct{ err error }

func (f failingRecorder) RecordCharges(context.Context, intercompany.ChargeBatch) ([]intercompany.ChargeRecord, error) {
	return nil, f.err
}

func sampleBatch() intercompany.ChargeBatch {
	return intercompany.ChargeBatch{
		ReceiptID:       "RE-2024-020",
		EventID:         "3d7f4f0e-2f5c-4b7e-9f8e-0c4d5a1b2c3d",
		PayingCompanyID: ledgertest.CompanyB,
		OwedToCompanyID: ledgertest.CompanyA,
		Currency:        "THB",
		CharterDate:     ledgertest.Date,
		Allocations: []intercompany.Allocation{
			{ProjectID: ledgertest.ProjectA, Amount: ledgertest.Amount("4000")},
			{ProjectID: ledgertest.ProjectB, Amount: ledgertest.Amount("6000")},
		},
	}
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestIntercompanyChargesJobRecordsBatchOnce(t *testing.T) {
	h := ledgertest.New(t)
	claims := newMemoryClaims()
	job := NewIntercompanyChargesJob(h.Generator, claims, h.Logger, testMetrics())

	batch := sampleBatch()
	batch.EventID = h.IntercompanyReceiptEvent(t, batch.ReceiptID).String()
	task, err := NewIntercompanyChargesTask(batch)
	require.NoError(t, err)
	require.Equal(t, TaskIntercompanyCharges, task.Type())

	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))

	records, err := h.Charges.ListByReceipt(context.Background(), "RE-2024-020")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Empty(t, claims.released)
}

func TestIntercompanyChargesJobSkipsSupersededBatch(t *testing.T) {
	h := ledgertest.New(t)
	claims := newMemoryClaims()
	job := NewIntercompanyChargesJob(h.Generator, claims, h.Logger, testMetrics())

	task, err := NewIntercompanyChargesTask(sampleBatch())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	records, err := h.Charges.ListByReceipt(context.Background(), "RE-2024-020")
	require.NoError(t, err)
	require.Empty(t, records)
	require.Empty(t, claims.released)
}

func TestIntercompanyChargesJobReleasesKeyOnFailure(t *testing.T) {
	claims := newMemoryClaims()
	job := NewIntercompanyChargesJob(failingRecorder{err: errors.New("connection reset")}, claims, nil, testMetrics())

	task, err := NewIntercompanyChargesTask(sampleBatch())
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
	require.Equal(t, []string{sampleBatch().EventID}, claims.released)
}

func TestIntercompanyChargesJobSkipsRetryForIncompleteBatch(t *testing.T) {
	h := ledgertest.New(t)
	job := NewIntercompanyChargesJob(h.Generator, newMemoryClaims(), nil, testMetrics())

	batch := sampleBatch()
	batch.PayingCompanyID = ""
	task, err := NewIntercompanyChargesTask(batch)
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIntercompanyChargesJobRejectsGarbage(t *testing.T) {
	h := ledgertest.New(t)
	job := NewIntercompanyChargesJob(h.Generator, nil, nil, testMetrics())
	err := job.Handle(context.Background(), asynq.NewTask(TaskIntercompanyCharges, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewIntercompanyChargesTaskRequiresReceipt(t *testing.T) {
	_, err := NewIntercompanyChargesTask(intercompany.ChargeBatch{})
	require.Error(t, err)
}

type stubPruner struct {
	olderThan time.Duration
}

func (s *stubPruner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return 3, nil
}

func TestIdempotencyCleanupDefaultsRetention(t *testing.T) {
	pruner := &stubPruner{}
	job := &IdempotencyCleanupJob{Store: pruner, Metrics: testMetrics()}
	task, err := NewIdempotencyCleanupTask(0)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 30*24*time.Hour, pruner.olderThan)
}

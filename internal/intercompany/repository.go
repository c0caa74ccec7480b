package intercompany

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
)

// Repository persists charge records.
type Repository interface {
	// Replace makes records the receipt's only charges, provided eventID is
	// still the receipt's active event; otherwise it returns
	// ErrBatchSuperseded and changes nothing. It reports how many records
	// were new.
	Replace(ctx context.Context, receiptID string, eventID uuid.UUID, records []ChargeRecord) (int, error)
	ListByReceipt(ctx context.Context, receiptID string) ([]ChargeRecord, error)
	DeleteByReceipt(ctx context.Context, receiptID string) (int, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) Replace(ctx context.Context, receiptID string, eventID uuid.UUID, records []ChargeRecord) (int, error) {
	inserted := 0
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		inserted = 0
		// FOR SHARE holds off a concurrent void until the records commit.
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM accounting_events WHERE id = $1 AND voided_at IS NULL FOR SHARE`, eventID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrBatchSuperseded
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM intercompany_charge_records WHERE receipt_id = $1 AND event_id IS DISTINCT FROM $2`, receiptID, eventID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, rec := range records {
			batch.Queue(`INSERT INTO intercompany_charge_records (id, receipt_id, event_id, paying_company_id, owed_to_company_id, amount, currency, project_id, charter_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (receipt_id, project_id) DO NOTHING`,
				rec.ID, rec.ReceiptID, eventID, rec.PayingCompanyID, rec.OwedToCompanyID, rec.Amount, rec.Currency, rec.ProjectID, rec.CharterDate, rec.CreatedAt)
		}
		results := tx.SendBatch(ctx, batch)
		for range records {
			tag, err := results.Exec()
			if err != nil {
				_ = results.Close()
				return err
			}
			inserted += int(tag.RowsAffected())
		}
		return results.Close()
	})
	return inserted, err
}

func (r *repository) ListByReceipt(ctx context.Context, receiptID string) ([]ChargeRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT id, receipt_id, COALESCE(event_id, '00000000-0000-0000-0000-000000000000'::uuid), paying_company_id, owed_to_company_id, amount, currency, project_id, charter_date, created_at
FROM intercompany_charge_records WHERE receipt_id = $1 ORDER BY project_id`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChargeRecord
	for rows.Next() {
		var rec ChargeRecord
		if err := rows.Scan(&rec.ID, &rec.ReceiptID, &rec.EventID, &rec.PayingCompanyID, &rec.OwedToCompanyID, &rec.Amount, &rec.Currency, &rec.ProjectID, &rec.CharterDate, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) DeleteByReceipt(ctx context.Context, receiptID string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM intercompany_charge_records WHERE receipt_id = $1`, receiptID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// EventLookup loads accounting events so MemoryRepository can tell whether a
// batch's event still stands.
type EventLookup interface {
	Get(ctx context.Context, id uuid.UUID) (events.Event, error)
}

// MemoryRepository keeps charge records in process. Without an EventLookup
// every event counts as active.
type MemoryRepository struct {
	mu      sync.Mutex
	events  EventLookup
	records map[string]ChargeRecord
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: map[string]ChargeRecord{}}
}

// WithEvents makes Replace refuse batches of voided or unknown events.
func (m *MemoryRepository) WithEvents(lookup EventLookup) *MemoryRepository {
	m.events = lookup
	return m
}

func (m *MemoryRepository) Replace(ctx context.Context, receiptID string, eventID uuid.UUID, records []ChargeRecord) (int, error) {
	if m.events != nil {
		event, err := m.events.Get(ctx, eventID)
		if err != nil || !event.Active() {
			return 0, ErrBatchSuperseded
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, rec := range m.records {
		if rec.ReceiptID == receiptID && rec.EventID != eventID {
			delete(m.records, key)
		}
	}
	inserted := 0
	for _, rec := range records {
		key := rec.ReceiptID + "|" + rec.ProjectID
		if _, exists := m.records[key]; exists {
			continue
		}
		rec.EventID = eventID
		m.records[key] = rec
		inserted++
	}
	return inserted, nil
}

func (m *MemoryRepository) ListByReceipt(_ context.Context, receiptID string) ([]ChargeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ChargeRecord
	for _, rec := range m.records {
		if rec.ReceiptID == receiptID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out, nil
}

func (m *MemoryRepository) DeleteByReceipt(_ context.Context, receiptID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key, rec := range m.records {
		if rec.ReceiptID == receiptID {
			delete(m.records, key)
			deleted++
		}
	}
	return deleted, nil
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

const activeEventConstraint = "uq_accounting_events_active"

// Repository persists accounting events.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (Event, error)
	ListBySource(ctx context.Context, sourceType, sourceID string) ([]Event, error)
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes event writes together with journal writes so that
// posting and stamping share one transaction.
type TxRepository interface {
	journals.TxRepository
	InsertEvent(ctx context.Context, event Event) error
	// FindActiveForUpdate locks the active event sharing eventType's dedup key.
	FindActiveForUpdate(ctx context.Context, eventType EventType, sourceType, sourceID string) (Event, error)
	VoidEvent(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	VoidBySource(ctx context.Context, sourceType, sourceID, reason string, at time.Time) (int, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, journalEntryID *uuid.UUID, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const eventColumns = `id, event_type, event_date, affected_company_ids, source_document_type, source_document_id, payload, created_by, created_at, processed_at, journal_entry_id, COALESCE(post_error, ''), voided_at, COALESCE(void_reason, '')`

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	event, err := scanEvent(r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM accounting_events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, shared.ErrEventNotFound
	}
	return event, err
}

func (r *repository) ListBySource(ctx context.Context, sourceType, sourceID string) ([]Event, error) {
	rows, err := r.db.Query(ctx, `SELECT `+eventColumns+` FROM accounting_events
WHERE source_document_type = $1 AND source_document_id = $2 ORDER BY created_at, id`, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.db.Exec(ctx, `UPDATE accounting_events SET post_error = $2 WHERE id = $1 AND processed_at IS NULL`, id, message)
	return err
}

// WithTx runs fn through db.WithTx; serialization failures rerun fn.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: journals.NewTxRepository(tx), tx: tx})
	})
}

type txRepository struct {
	journals.TxRepository
	tx pgx.Tx
}

func (r *txRepository) InsertEvent(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `INSERT INTO accounting_events (id, event_type, event_date, affected_company_ids, source_document_type, source_document_id, payload, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		event.ID, string(event.Type), event.EventDate, event.AffectedCompanyIDs, event.SourceDocumentType, event.SourceDocumentID, payload, event.CreatedBy, event.CreatedAt)
	if internalShared.IsUniqueViolation(err, activeEventConstraint) {
		return &shared.DuplicateEventError{
			EventType:          string(event.Type),
			SourceDocumentType: event.SourceDocumentType,
			SourceDocumentID:   event.SourceDocumentID,
		}
	}
	return err
}

func (r *txRepository) FindActiveForUpdate(ctx context.Context, eventType EventType, sourceType, sourceID string) (Event, error) {
	event, err := scanEvent(r.tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM accounting_events
WHERE dedup_key = $1 AND source_document_type = $2 AND source_document_id = $3 AND voided_at IS NULL
FOR UPDATE`, string(eventType.DedupKey()), sourceType, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, shared.ErrEventNotFound
	}
	return event, err
}

func (r *txRepository) VoidEvent(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounting_events SET voided_at = $2, void_reason = $3, journal_entry_id = NULL WHERE id = $1 AND voided_at IS NULL`, id, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEventNotFound
	}
	return nil
}

func (r *txRepository) VoidBySource(ctx context.Context, sourceType, sourceID, reason string, at time.Time) (int, error) {
	tag, err := r.tx.Exec(ctx, `UPDATE accounting_events SET voided_at = $3, void_reason = $4, journal_entry_id = NULL
WHERE source_document_type = $1 AND source_document_id = $2 AND voided_at IS NULL`, sourceType, sourceID, at, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *txRepository) MarkProcessed(ctx context.Context, id uuid.UUID, journalEntryID *uuid.UUID, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE accounting_events SET processed_at = $2, journal_entry_id = $3, post_error = NULL
WHERE id = $1 AND voided_at IS NULL AND processed_at IS NULL`, id, at, journalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrEventProcessed
	}
	return nil
}

func scanEvent(row pgx.Row) (Event, error) {
	var (
		event     Event
		eventType string
		payload   []byte
	)
	if err := row.Scan(&event.ID, &eventType, &event.EventDate, &event.AffectedCompanyIDs, &event.SourceDocumentType, &event.SourceDocumentID,
		&payload, &event.CreatedBy, &event.CreatedAt, &event.ProcessedAt, &event.JournalEntryID, &event.PostError, &event.VoidedAt, &event.VoidReason); err != nil {
		return Event{}, err
	}
	event.Type = EventType(eventType)
	decoded, err := DecodePayload(event.Type, payload)
	if err != nil {
		return Event{}, err
	}
	event.Payload = decoded
	return event, nil
}

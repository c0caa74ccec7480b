package journals

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
)

// Repository encapsulates DB operations for journals.
type Repository interface {
	ListBySource(ctx context.Context, sourceType, sourceID string) ([]JournalEntry, error)
	Get(ctx context.Context, id uuid.UUID) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes journal writes available within a transaction. Other
// stores that post journals inside their own transaction embed it.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, entry JournalEntry) error
	InsertJournalLines(ctx context.Context, entryID uuid.UUID, lines []JournalLine) error
	DeleteBySource(ctx context.Context, sourceType, sourceID string) ([]uuid.UUID, error)
	DeleteByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) ListBySource(ctx context.Context, sourceType, sourceID string) ([]JournalEntry, error) {
	return listEntries(ctx, r.db, `WHERE source_document_type = $1 AND source_document_id = $2`, sourceType, sourceID)
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	entries, err := listEntries(ctx, r.db, `WHERE id = $1`, id)
	if err != nil {
		return JournalEntry{}, err
	}
	if len(entries) == 0 {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return entries[0], nil
}

// WithTx runs fn through db.WithTx, so fn may run more than once.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

// NewTxRepository binds journal writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_entries (id, event_id, company_id, entry_date, source_document_type, source_document_id, description, currency, fx_rate, fx_source, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		entry.ID, entry.EventID, entry.CompanyID, entry.EntryDate, entry.SourceDocumentType, entry.SourceDocumentID,
		entry.Description, entry.Currency, entry.FXRate, string(entry.FXSource), entry.CreatedBy, entry.CreatedAt)
	return err
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID uuid.UUID, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (id, entry_id, line_no, account_code, debit, credit, base_debit, base_credit, description, project_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			line.ID, entryID, line.LineNo, line.AccountCode, line.Debit, line.Credit, line.BaseDebit, line.BaseCredit, line.Description, line.ProjectID)
	}
	results := r.tx.SendBatch(ctx, batch)
	defer results.Close()
	for range lines {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) DeleteBySource(ctx context.Context, sourceType, sourceID string) ([]uuid.UUID, error) {
	return collectIDs(r.tx.Query(ctx, `DELETE FROM journal_entries WHERE source_document_type = $1 AND source_document_id = $2 RETURNING id`, sourceType, sourceID))
}

func (r *txRepository) DeleteByEvent(ctx context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	return collectIDs(r.tx.Query(ctx, `DELETE FROM journal_entries WHERE event_id = $1 RETURNING id`, eventID))
}

func collectIDs(rows pgx.Rows, err error) ([]uuid.UUID, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func listEntries(ctx context.Context, q querier, where string, args ...any) ([]JournalEntry, error) {
	rows, err := q.Query(ctx, `SELECT id, event_id, company_id, entry_date, source_document_type, source_document_id, description, currency, fx_rate, fx_source, created_by, created_at
FROM journal_entries `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	index := map[uuid.UUID]int{}
	ids := []uuid.UUID{}
	for rows.Next() {
		var e JournalEntry
		var source string
		if err := rows.Scan(&e.ID, &e.EventID, &e.CompanyID, &e.EntryDate, &e.SourceDocumentType, &e.SourceDocumentID, &e.Description, &e.Currency, &e.FXRate, &source, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FXSource = fx.Source(source)
		index[e.ID] = len(entries)
		ids = append(ids, e.ID)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return entries, nil
	}
	lineRows, err := q.Query(ctx, `SELECT id, entry_id, line_no, account_code, debit, credit, base_debit, base_credit, description, project_id
FROM journal_lines WHERE entry_id = ANY($1) ORDER BY entry_id, line_no`, ids)
	if err != nil {
		return nil, err
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var l JournalLine
		if err := lineRows.Scan(&l.ID, &l.EntryID, &l.LineNo, &l.AccountCode, &l.Debit, &l.Credit, &l.BaseDebit, &l.BaseCredit, &l.Description, &l.ProjectID); err != nil {
			return nil, err
		}
		pos, ok := index[l.EntryID]
		if !ok {
			return nil, fmt.Errorf("journal line %s references unknown entry %s", l.ID, l.EntryID)
		}
		entries[pos].Lines = append(entries[pos].Lines, l)
	}
	return entries, lineRows.Err()
}

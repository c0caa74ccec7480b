//go:build integration

package db_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db/dbtest"
)

func insertEvent(ctx context.Context, t *testing.T, database dbtest.Database, sourceID string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := database.Pool.Exec(ctx, `INSERT INTO accounting_events
		(id, event_type, event_date, affected_company_ids, source_document_type, source_document_id, payload, created_by)
		VALUES ($1, 'RECEIPT_RECEIVED', '2024-06-03', ARRAY['co-main'], 'receipt', $2, '{}'::jsonb, 'test')`, id, sourceID)
	require.NoError(t, err)
	return id
}

func TestActiveEventUniqueness(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Start(t)

	first := insertEvent(ctx, t, database, "RE-1")

	_, err := database.Pool.Exec(ctx, `INSERT INTO accounting_events
		(id, event_type, event_date, affected_company_ids, source_document_type, source_document_id, payload, created_by)
		VALUES ($1, 'RECEIPT_RECEIVED', '2024-06-03', ARRAY['co-main'], 'receipt', 'RE-1', '{}'::jsonb, 'test')`, uuid.New())
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "23505", pgErr.Code)

	_, err = database.Pool.Exec(ctx, `UPDATE accounting_events SET voided_at = NOW(), void_reason = 'replaced' WHERE id = $1`, first)
	require.NoError(t, err)
	insertEvent(ctx, t, database, "RE-1")
}

func TestReceiptEventTypesShareActiveSlot(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Start(t)

	insertEvent(ctx, t, database, "RE-3")
	_, err := database.Pool.Exec(ctx, `INSERT INTO accounting_events
		(id, event_type, event_date, affected_company_ids, source_document_type, source_document_id, payload, created_by)
		VALUES ($1, 'RECEIPT_RECEIVED_INTERCOMPANY', '2024-06-03', ARRAY['co-main','co-b'], 'receipt', 'RE-3', '{}'::jsonb, 'test')`, uuid.New())
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, "23505", pgErr.Code)
}

func TestJournalLinesCascade(t *testing.T) {
	ctx := context.Background()
	database := dbtest.Start(t)

	eventID := insertEvent(ctx, t, database, "RE-2")
	entryID := uuid.New()
	_, err := database.Pool.Exec(ctx, `INSERT INTO journal_entries
		(id, event_id, company_id, entry_date, source_document_type, source_document_id, currency, created_by)
		VALUES ($1, $2, 'co-main', '2024-06-03', 'receipt', 'RE-2', 'THB', 'test')`, entryID, eventID)
	require.NoError(t, err)
	_, err = database.Pool.Exec(ctx, `UPDATE accounting_events SET journal_entry_id = $1, processed_at = NOW() WHERE id = $2`, entryID, eventID)
	require.NoError(t, err)
	for i, side := range []string{"debit", "credit"} {
		_, err = database.Pool.Exec(ctx, `INSERT INTO journal_lines (id, entry_id, line_no, account_code, `+side+`, base_`+side+`)
			VALUES ($1, $2, $3, '1010', 100, 100)`, uuid.New(), entryID, i+1)
		require.NoError(t, err)
	}

	_, err = database.Pool.Exec(ctx, `INSERT INTO journal_lines (id, entry_id, line_no, account_code, debit, credit)
		VALUES ($1, $2, 3, '1010', 10, 10)`, uuid.New(), entryID)
	require.Error(t, err)

	_, err = database.Pool.Exec(ctx, `DELETE FROM journal_entries WHERE id = $1`, entryID)
	require.NoError(t, err)

	var lines int
	require.NoError(t, database.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE entry_id = $1`, entryID).Scan(&lines))
	require.Zero(t, lines)

	var journal *uuid.UUID
	require.NoError(t, database.Pool.QueryRow(ctx, `SELECT journal_entry_id FROM accounting_events WHERE id = $1`, eventID).Scan(&journal))
	require.Nil(t, journal)
}

func TestMigratorDownAndUp(t *testing.T) {
	database := dbtest.Start(t)
	m, err := db.NewMigrator(database.DSN, dbtest.Logger())
	require.NoError(t, err)
	defer m.Close()

	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.EqualValues(t, 4, version)

	require.NoError(t, m.Down(2))
	version, _, err = m.Version()
	require.NoError(t, err)
	require.EqualValues(t, 2, version)

	require.NoError(t, m.Up())
	require.NoError(t, m.Up())
}

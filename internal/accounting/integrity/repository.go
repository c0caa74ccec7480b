package integrity

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// Repository runs the integrity queries. Journals within the posting
// tolerance count as balanced.
type Repository interface {
	Imbalances(ctx context.Context, limit int) ([]Imbalance, error)
	StuckEvents(ctx context.Context, olderThan time.Time, limit int) ([]StuckEvent, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const imbalanceQuery = `
SELECT e.id, e.company_id, e.source_document_type, e.source_document_id,
       COUNT(l.id), COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.entry_id = e.id
GROUP BY e.id
HAVING COUNT(l.id) < 2 OR ABS(COALESCE(SUM(l.debit), 0) - COALESCE(SUM(l.credit), 0)) > $1
ORDER BY e.created_at
LIMIT $2`

func (r *repository) Imbalances(ctx context.Context, limit int) ([]Imbalance, error) {
	rows, err := r.db.Query(ctx, imbalanceQuery, internalShared.BalanceTolerance, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Imbalance, error) {
		var im Imbalance
		err := row.Scan(&im.EntryID, &im.CompanyID, &im.SourceDocumentType, &im.SourceDocumentID, &im.Lines, &im.Debit, &im.Credit)
		return im, err
	})
}

const stuckQuery = `
SELECT id, event_type, source_document_type, source_document_id, created_at, COALESCE(post_error, '')
FROM accounting_events
WHERE processed_at IS NULL AND voided_at IS NULL AND created_at < $1
ORDER BY created_at
LIMIT $2`

func (r *repository) StuckEvents(ctx context.Context, olderThan time.Time, limit int) ([]StuckEvent, error) {
	rows, err := r.db.Query(ctx, stuckQuery, olderThan, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StuckEvent, error) {
		var ev StuckEvent
		err := row.Scan(&ev.EventID, &ev.EventType, &ev.SourceDocumentType, &ev.SourceDocumentID, &ev.CreatedAt, &ev.PostError)
		return ev, err
	})
}

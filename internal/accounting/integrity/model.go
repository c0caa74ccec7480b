// Package integrity scans posted journals and recorded events for states the
// posting pipeline should never leave behind.
package integrity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Imbalance is a journal entry whose lines do not net to zero or that has
// fewer than two lines.
type Imbalance struct {
	EntryID            uuid.UUID       `json:"entry_id"`
	CompanyID          string          `json:"company_id"`
	SourceDocumentType string          `json:"source_document_type"`
	SourceDocumentID   string          `json:"source_document_id"`
	Lines              int             `json:"lines"`
	Debit              decimal.Decimal `json:"debit"`
	Credit             decimal.Decimal `json:"credit"`
}

// StuckEvent is an active event that was never processed.
type StuckEvent struct {
	EventID            uuid.UUID `json:"event_id"`
	EventType          string    `json:"event_type"`
	SourceDocumentType string    `json:"source_document_type"`
	SourceDocumentID   string    `json:"source_document_id"`
	CreatedAt          time.Time `json:"created_at"`
	PostError          string    `json:"post_error,omitempty"`
}

// Report is the outcome of one scan.
type Report struct {
	CheckedAt   time.Time    `json:"checked_at"`
	Imbalances  []Imbalance  `json:"imbalances"`
	StuckEvents []StuckEvent `json:"stuck_events"`
}

// Clean reports whether the scan found nothing.
func (r Report) Clean() bool {
	return len(r.Imbalances) == 0 && len(r.StuckEvents) == 0
}

package journals

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
)

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID                 uuid.UUID       `json:"id"`
	EventID            *uuid.UUID      `json:"event_id,omitempty"`
	CompanyID          string          `json:"company_id"`
	EntryDate          time.Time       `json:"entry_date"`
	SourceDocumentType string          `json:"source_document_type"`
	SourceDocumentID   string          `json:"source_document_id"`
	Description        string          `json:"description"`
	Currency           string          `json:"currency"`
	FXRate             decimal.Decimal `json:"fx_rate"`
	FXSource           fx.Source       `json:"fx_source"`
	CreatedBy          string          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	Lines              []JournalLine   `json:"lines"`
}

// JournalLine stores a debit or credit amount for an account, in the entry
// currency and converted to the base currency.
type JournalLine struct {
	ID          uuid.UUID       `json:"id"`
	EntryID     uuid.UUID       `json:"entry_id"`
	LineNo      int             `json:"line_no"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	BaseDebit   decimal.Decimal `json:"base_debit"`
	BaseCredit  decimal.Decimal `json:"base_credit"`
	Description string          `json:"description"`
	ProjectID   *string         `json:"project_id,omitempty"`
}

// Totals sums the entry's debit and credit columns.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

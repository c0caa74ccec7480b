package journals

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// ProposedLine is one side of a proposed journal. Currency is optional and,
// when set, must match the journal currency.
type ProposedLine struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description string
	ProjectID   string
	Currency    string
}

// ProposedJournal is what an event handler computes; nothing is persisted yet.
type ProposedJournal struct {
	CompanyID   string
	EntryDate   time.Time
	Description string
	Currency    string
	FXRate      decimal.Decimal
	FXSource    fx.Source
	Lines       []ProposedLine
}

// Debit builds a debit line.
func Debit(code string, amount decimal.Decimal, description string) ProposedLine {
	return ProposedLine{AccountCode: code, Debit: internalShared.Round2(amount), Description: description}
}

// Credit builds a credit line.
func Credit(code string, amount decimal.Decimal, description string) ProposedLine {
	return ProposedLine{AccountCode: code, Credit: internalShared.Round2(amount), Description: description}
}

// WithProject tags the line with a project.
func (l ProposedLine) WithProject(projectID string) ProposedLine {
	l.ProjectID = projectID
	return l
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Journal            ProposedJournal
	SourceDocumentType string
	SourceDocumentID   string
	CompanyID          string
	EventID            *uuid.UUID
	CreatedBy          string
}

// Chart validates account codes.
type Chart interface {
	Exists(code string) bool
}

// Validate enforces the posting invariants: source and company present, a
// known currency, at least two lines, exactly one positive side per line,
// consistent currency, known accounts and debits equal to credits.
func (in PostingInput) Validate(chart Chart) error {
	if strings.TrimSpace(in.SourceDocumentType) == "" || strings.TrimSpace(in.SourceDocumentID) == "" {
		return errors.New("accounting: source document required")
	}
	if in.CompanyID == "" {
		return errors.New("accounting: company required")
	}
	if in.Journal.CompanyID != "" && in.Journal.CompanyID != in.CompanyID {
		return fmt.Errorf("accounting: journal proposed for company %s posted to %s", in.Journal.CompanyID, in.CompanyID)
	}
	if in.Journal.EntryDate.IsZero() {
		return errors.New("accounting: entry date required")
	}
	currency, err := fx.NormalizeCurrency(in.Journal.Currency)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrCurrencyMismatch, err)
	}
	if len(in.Journal.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	// Amounts are checked as stored: rounded to two places.
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Journal.Lines {
		d, c := internalShared.Round2(line.Debit), internalShared.Round2(line.Credit)
		if d.IsNegative() || c.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrInvalidLine, idx)
		}
		if d.IsPositive() == c.IsPositive() {
			return fmt.Errorf("%w: line %d rounds to %s/%s", shared.ErrInvalidLine, idx, d, c)
		}
		debit, credit = debit.Add(d), credit.Add(c)
		if line.Currency != "" && !strings.EqualFold(line.Currency, currency) {
			return fmt.Errorf("%w: line %d in %s, journal in %s", shared.ErrCurrencyMismatch, idx, line.Currency, currency)
		}
		if chart == nil || !chart.Exists(line.AccountCode) {
			return &shared.AccountResolutionError{CompanyID: in.CompanyID, Code: line.AccountCode}
		}
	}
	if !internalShared.WithinTolerance(debit, credit) {
		return &shared.UnbalancedJournalError{CompanyID: in.CompanyID, Debit: debit, Credit: credit}
	}
	return nil
}

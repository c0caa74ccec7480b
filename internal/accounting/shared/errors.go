package shared

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidLine indicates a line that is not exactly one of debit or credit.
	ErrInvalidLine = errors.New("accounting: line must carry exactly one positive debit or credit")
	// ErrCurrencyMismatch indicates lines or postings disagree on currency.
	ErrCurrencyMismatch = errors.New("accounting: currency mismatch")
	// ErrAccountResolution indicates an unknown or unmapped GL account.
	ErrAccountResolution = errors.New("accounting: account could not be resolved")
	// ErrDuplicateEvent indicates the event was already recorded for the source document.
	ErrDuplicateEvent = errors.New("accounting: event already recorded")
	// ErrStorage indicates a transient persistence failure.
	ErrStorage = errors.New("accounting: storage failure")
	// ErrInvalidPayload indicates the event payload does not match its contract.
	ErrInvalidPayload = errors.New("accounting: invalid event payload")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrEventNotFound indicates missing event.
	ErrEventNotFound = errors.New("accounting: event not found")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
	// ErrSourceConflict indicates the unique source key already exists.
	ErrSourceConflict = errors.New("accounting: source conflict")
	// ErrEventProcessed indicates a retry was requested for an event that already posted.
	ErrEventProcessed = errors.New("accounting: event already processed")
)

// DuplicateEventError reports the active event that blocks a new one.
type DuplicateEventError struct {
	EventType          string
	SourceDocumentType string
	SourceDocumentID   string
	ExistingEventID    string
}

func (e *DuplicateEventError) Error() string {
	if e.ExistingEventID == "" {
		return fmt.Sprintf("accounting: %s already recorded for %s %s", e.EventType, e.SourceDocumentType, e.SourceDocumentID)
	}
	return fmt.Sprintf("accounting: %s already recorded for %s %s (event %s)", e.EventType, e.SourceDocumentType, e.SourceDocumentID, e.ExistingEventID)
}

func (e *DuplicateEventError) Unwrap() error { return ErrDuplicateEvent }

// UnbalancedJournalError carries the totals of a rejected journal.
type UnbalancedJournalError struct {
	CompanyID string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func (e *UnbalancedJournalError) Error() string {
	return fmt.Sprintf("accounting: journal for company %s unbalanced (debit %s, credit %s)", e.CompanyID, e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

func (e *UnbalancedJournalError) Unwrap() error { return ErrUnbalanced }

// AccountResolutionError names the role or code that failed to resolve.
type AccountResolutionError struct {
	CompanyID string
	Role      string
	Ref       string
	Code      string
	Err       error
}

func (e *AccountResolutionError) Error() string {
	msg := "accounting: account could not be resolved"
	if e.Role != "" {
		msg += " for role " + e.Role
		if e.Ref != "" {
			msg += " (" + e.Ref + ")"
		}
	}
	if e.Code != "" {
		msg += ": unknown code " + e.Code
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AccountResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAccountResolution}
	}
	return []error{ErrAccountResolution, e.Err}
}

// StorageError wraps a database failure for the named operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("accounting: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// Storage wraps err as a StorageError unless it already carries a domain sentinel.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrStorage, ErrDuplicateEvent, ErrJournalNotFound, ErrEventNotFound, ErrMappingNotFound, ErrSourceConflict} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &StorageError{Op: op, Err: err}
}

package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

// VoidReasonSuperseded marks an event replaced by a forced re-post.
const VoidReasonSuperseded = "superseded"

// Event is an immutable business fact. It is mutated once when posting
// succeeds, or marked with PostError when it does not.
type Event struct {
	ID                 uuid.UUID  `json:"id"`
	Type               EventType  `json:"event_type"`
	EventDate          time.Time  `json:"event_date"`
	AffectedCompanyIDs []string   `json:"affected_company_ids"`
	SourceDocumentType string     `json:"source_document_type"`
	SourceDocumentID   string     `json:"source_document_id"`
	Payload            Payload    `json:"payload"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
	JournalEntryID     *uuid.UUID `json:"journal_entry_id,omitempty"`
	PostError          string     `json:"post_error,omitempty"`
	VoidedAt           *time.Time `json:"voided_at,omitempty"`
	VoidReason         string     `json:"void_reason,omitempty"`
}

// Active reports whether the event has not been voided.
func (e Event) Active() bool { return e.VoidedAt == nil }

// Processed reports whether posting completed for the event.
func (e Event) Processed() bool { return e.ProcessedAt != nil }

// Input is what callers hand to Store.CreateAndProcess.
type Input struct {
	EventType          EventType
	EventDate          time.Time
	AffectedCompanyIDs []string
	Payload            Payload
	SourceDocumentType string
	SourceDocumentID   string
	ActorID            string
	// ForcePost supersedes an active event for the same source document
	// instead of failing. Used by backfills.
	ForcePost bool
}

// RawInput is the wire form of Input, used by the HTTP API and the backfill CLI.
type RawInput struct {
	EventType          EventType       `json:"event_type" validate:"required"`
	EventDate          string          `json:"event_date" validate:"required,datetime=2006-01-02"`
	AffectedCompanyIDs []string        `json:"affected_company_ids" validate:"required,min=1,max=2,unique,dive,required"`
	SourceDocumentType string          `json:"source_document_type" validate:"required"`
	SourceDocumentID   string          `json:"source_document_id" validate:"required"`
	Payload            json.RawMessage `json:"payload" validate:"required"`
	ForcePost          bool            `json:"force_post,omitempty"`
}

// Input decodes the payload and parses the date.
func (r RawInput) Input(actor string) (Input, error) {
	date, err := time.Parse(time.DateOnly, r.EventDate)
	if err != nil {
		return Input{}, fmt.Errorf("%w: event date: %v", shared.ErrInvalidPayload, err)
	}
	payload, err := DecodePayload(r.EventType, r.Payload)
	if err != nil {
		return Input{}, err
	}
	return Input{
		EventType:          r.EventType,
		EventDate:          date,
		AffectedCompanyIDs: r.AffectedCompanyIDs,
		Payload:            payload,
		SourceDocumentType: r.SourceDocumentType,
		SourceDocumentID:   r.SourceDocumentID,
		ActorID:            actor,
		ForcePost:          r.ForcePost,
	}, nil
}

// ProcessResult reports the outcome of recording and posting an event.
// EventID is set whenever the event row exists, including when posting failed.
type ProcessResult struct {
	Success         bool        `json:"success"`
	EventID         *uuid.UUID  `json:"event_id,omitempty"`
	JournalEntryID  *uuid.UUID  `json:"journal_entry_id,omitempty"`
	JournalEntryIDs []uuid.UUID `json:"journal_entry_ids,omitempty"`
	Error           string      `json:"error,omitempty"`
	Err             error       `json:"-"`
}

func failed(eventID *uuid.UUID, err error) ProcessResult {
	return ProcessResult{Success: false, EventID: eventID, Error: err.Error(), Err: err}
}

// Outcome pairs a business record with the result of the event it fired.
// RecordSaved with a failed Posting means the record exists but its journal
// did not post; the caller reports the two separately.
type Outcome[T any] struct {
	Record      T             `json:"record"`
	RecordSaved bool          `json:"record_saved"`
	Posting     ProcessResult `json:"posting"`
}

// Package events records accounting events and turns them into posted journals.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// Processor turns an event into the journals it should post. An event that
// posts nothing returns an empty slice.
type Processor interface {
	Build(ctx context.Context, event Event) ([]journals.ProposedJournal, error)
}

// Ledger validates and prepares journals; the store inserts them in its own
// transaction so the event stamp and the journals commit together.
type Ledger interface {
	Build(ctx context.Context, inputs ...journals.PostingInput) ([]journals.JournalEntry, error)
	Published(ctx context.Context, entries []journals.JournalEntry)
}

// Observer receives event outcomes for metrics.
type Observer interface {
	ObserveEvent(eventType, outcome string)
}

const (
	OutcomePosted    = "posted"
	OutcomeFailed    = "failed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
)

type Store struct {
	repo      Repository
	processor Processor
	ledger    Ledger
	observer  Observer
	logger    *slog.Logger
	validate  *validator.Validate
	now       func() time.Time
}

func NewStore(repo Repository, processor Processor, ledger Ledger, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		repo:      repo,
		processor: processor,
		ledger:    ledger,
		logger:    logger.With(slog.String("component", "events")),
		validate:  internalShared.NewValidator(),
		now:       time.Now,
	}
}

func (s *Store) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Store) WithObserver(observer Observer) *Store {
	s.observer = observer
	return s
}

// CreateAndProcess records the event and synchronously posts its journals.
// A posting failure leaves the event row in place with PostError set.
func (s *Store) CreateAndProcess(ctx context.Context, in Input) ProcessResult {
	if err := s.Validate(in); err != nil {
		s.observe(in.EventType, OutcomeRejected)
		return failed(nil, err)
	}
	actor := in.ActorID
	if actor == "" {
		actor = internalShared.ActorFromContext(ctx)
	}
	event := Event{
		ID:                 uuid.New(),
		Type:               in.EventType,
		EventDate:          in.EventDate,
		AffectedCompanyIDs: append([]string(nil), in.AffectedCompanyIDs...),
		SourceDocumentType: in.SourceDocumentType,
		SourceDocumentID:   in.SourceDocumentID,
		Payload:            in.Payload,
		CreatedBy:          actor,
		CreatedAt:          s.now().UTC(),
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindActiveForUpdate(ctx, in.EventType, in.SourceDocumentType, in.SourceDocumentID)
		switch {
		case errors.Is(err, shared.ErrEventNotFound):
		case err != nil:
			return err
		case !in.ForcePost:
			return &shared.DuplicateEventError{
				EventType:          string(in.EventType),
				SourceDocumentType: in.SourceDocumentType,
				SourceDocumentID:   in.SourceDocumentID,
				ExistingEventID:    existing.ID.String(),
			}
		default:
			if _, err := tx.DeleteByEvent(ctx, existing.ID); err != nil {
				return err
			}
			if err := tx.VoidEvent(ctx, existing.ID, VoidReasonSuperseded, event.CreatedAt); err != nil {
				return err
			}
			s.logger.Info("superseding event", slog.String("event_id", existing.ID.String()), slog.String("source_id", in.SourceDocumentID))
		}
		return tx.InsertEvent(ctx, event)
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicateEvent) {
			s.observe(in.EventType, OutcomeDuplicate)
			return failed(nil, err)
		}
		s.observe(in.EventType, OutcomeFailed)
		s.logger.Error("record event", slog.String("event_type", string(in.EventType)), slog.Any("error", err))
		return failed(nil, shared.Storage("record event", err))
	}
	return s.process(ctx, event)
}

// Retry re-runs posting for an active event that has not been processed.
func (s *Store) Retry(ctx context.Context, id uuid.UUID) ProcessResult {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return failed(nil, shared.Storage("load event", err))
	}
	eventID := event.ID
	if !event.Active() {
		return failed(&eventID, fmt.Errorf("%w: event %s is voided", shared.ErrEventNotFound, id))
	}
	if event.Processed() {
		return failed(&eventID, shared.ErrEventProcessed)
	}
	s.logger.Info("retrying event", slog.String("event_id", id.String()), slog.String("actor", internalShared.ActorFromContext(ctx)))
	return s.process(ctx, event)
}

// VoidBySourceDocument deletes every journal of the source document and voids
// its active events, so the document can be re-posted.
func (s *Store) VoidBySourceDocument(ctx context.Context, sourceType, sourceID, reason string) (int, error) {
	if sourceType == "" || sourceID == "" {
		return 0, fmt.Errorf("%w: source document required", internalShared.ErrInvalidInput)
	}
	if reason == "" {
		reason = "voided"
	}
	var voided int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.DeleteBySource(ctx, sourceType, sourceID); err != nil {
			return err
		}
		n, err := tx.VoidBySource(ctx, sourceType, sourceID, reason, s.now().UTC())
		voided = n
		return err
	})
	if err != nil {
		return 0, shared.Storage("void events", err)
	}
	s.logger.Info("voided source document", slog.String("source_type", sourceType), slog.String("source_id", sourceID), slog.Int("events", voided))
	return voided, nil
}

func (s *Store) ListBySourceDocument(ctx context.Context, sourceType, sourceID string) ([]Event, error) {
	events, err := s.repo.ListBySource(ctx, sourceType, sourceID)
	if err != nil {
		return nil, shared.Storage("list events", err)
	}
	return events, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		return Event{}, shared.Storage("get event", err)
	}
	return event, nil
}

// Validate checks an input at the boundary. Failures wrap ErrInvalidPayload.
func (s *Store) Validate(in Input) error {
	if !in.EventType.Valid() {
		return fmt.Errorf("%w: unknown event type %q", shared.ErrInvalidPayload, in.EventType)
	}
	if strings.TrimSpace(in.SourceDocumentType) == "" || strings.TrimSpace(in.SourceDocumentID) == "" {
		return fmt.Errorf("%w: source document required", shared.ErrInvalidPayload)
	}
	if in.EventDate.IsZero() {
		return fmt.Errorf("%w: event date required", shared.ErrInvalidPayload)
	}
	if len(in.AffectedCompanyIDs) == 0 || len(in.AffectedCompanyIDs) > 2 {
		return fmt.Errorf("%w: events affect one or two companies, got %d", shared.ErrInvalidPayload, len(in.AffectedCompanyIDs))
	}
	affected := map[string]bool{}
	for _, id := range in.AffectedCompanyIDs {
		if id == "" || affected[id] {
			return fmt.Errorf("%w: affected companies must be distinct and non-empty", shared.ErrInvalidPayload)
		}
		affected[id] = true
	}
	if in.Payload == nil {
		return fmt.Errorf("%w: payload required", shared.ErrInvalidPayload)
	}
	if in.Payload.EventType() != in.EventType {
		return fmt.Errorf("%w: payload %s does not match event %s", shared.ErrInvalidPayload, in.Payload.EventType(), in.EventType)
	}
	if err := s.validate.Struct(in.Payload); err != nil {
		return fmt.Errorf("%w: %s: %v", shared.ErrInvalidPayload, in.EventType, err)
	}
	companies := in.Payload.Companies()
	if len(companies) != len(affected) {
		return fmt.Errorf("%w: payload touches %d companies, event lists %d", shared.ErrInvalidPayload, len(companies), len(affected))
	}
	for _, id := range companies {
		if !affected[id] {
			return fmt.Errorf("%w: company %s missing from affected companies", shared.ErrInvalidPayload, id)
		}
	}
	return nil
}

func (s *Store) process(ctx context.Context, event Event) ProcessResult {
	eventID := event.ID
	logger := s.logger.With(slog.String("event_id", eventID.String()), slog.String("event_type", string(event.Type)))

	entries, err := s.prepare(ctx, event)
	if err != nil {
		return s.fail(ctx, logger, event, err)
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := journals.Insert(ctx, tx, entries); err != nil {
			return err
		}
		var primary *uuid.UUID
		if len(entries) > 0 {
			id := entries[0].ID
			primary = &id
		}
		return tx.MarkProcessed(ctx, eventID, primary, s.now().UTC())
	})
	if err != nil {
		return s.fail(ctx, logger, event, shared.Storage("post event journals", err))
	}
	s.ledger.Published(ctx, entries)
	s.observe(event.Type, OutcomePosted)

	result := ProcessResult{Success: true, EventID: &eventID}
	for _, entry := range entries {
		result.JournalEntryIDs = append(result.JournalEntryIDs, entry.ID)
	}
	if len(entries) > 0 {
		primary := entries[0].ID
		result.JournalEntryID = &primary
	}
	logger.Info("event posted", slog.Int("journals", len(entries)))
	return result
}

func (s *Store) prepare(ctx context.Context, event Event) ([]journals.JournalEntry, error) {
	if s.processor == nil {
		return nil, errors.New("accounting: no event processor configured")
	}
	proposals, err := s.processor.Build(ctx, event)
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 {
		return nil, nil
	}
	eventID := event.ID
	inputs := make([]journals.PostingInput, 0, len(proposals))
	for _, proposal := range proposals {
		inputs = append(inputs, journals.PostingInput{
			Journal:            proposal,
			SourceDocumentType: event.SourceDocumentType,
			SourceDocumentID:   event.SourceDocumentID,
			CompanyID:          proposal.CompanyID,
			EventID:            &eventID,
			CreatedBy:          event.CreatedBy,
		})
	}
	return s.ledger.Build(ctx, inputs...)
}

func (s *Store) fail(ctx context.Context, logger *slog.Logger, event Event, err error) ProcessResult {
	eventID := event.ID
	s.observe(event.Type, OutcomeFailed)
	logger.Error("event posting failed", slog.Any("error", err))
	if markErr := s.repo.MarkFailed(context.WithoutCancel(ctx), eventID, err.Error()); markErr != nil {
		logger.Warn("mark event failed", slog.Any("error", markErr))
	}
	return failed(&eventID, err)
}

func (s *Store) observe(eventType EventType, outcome string) {
	if s.observer != nil {
		s.observer.ObserveEvent(string(eventType), outcome)
	}
}

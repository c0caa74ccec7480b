// Package receipts posts customer receipts, routing charter money collected by
// another group company through the intercompany event.
package receipts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/sidechannel"
)

// SourceType is the source document type of receipt events and journals.
const SourceType = "receipt"

// EventStore records and posts accounting events.
type EventStore interface {
	CreateAndProcess(ctx context.Context, in events.Input) events.ProcessResult
	VoidBySourceDocument(ctx context.Context, sourceType, sourceID, reason string) (int, error)
}

// Detector decides whether a receipt is intercompany and builds its event.
type Detector interface {
	Detect(ctx context.Context, receipt events.ReceiptReceived) (intercompany.Decision, error)
	BuildEventData(ctx context.Context, receipt events.ReceiptReceived, decision intercompany.Decision) (events.ReceiptReceivedIntercompany, error)
	DeleteCharges(ctx context.Context, receiptID string) (int, error)
}

// ChargeSink records a charge batch, either in process or through the job queue.
type ChargeSink interface {
	Dispatch(ctx context.Context, batch intercompany.ChargeBatch) error
}

// ReceiptInput is a receipt to post and the date the money arrived.
type ReceiptInput struct {
	Receipt    events.ReceiptReceived `json:"receipt"`
	ReceivedOn time.Time              `json:"received_on"`
	ForcePost  bool                   `json:"force_post,omitempty"`
}

// Outcome separates a receipt whose event was saved but failed to post
// (RecordSaved && !Posting.Success) from a request that saved nothing.
type Outcome struct {
	RecordSaved  bool                  `json:"record_saved"`
	Posting      events.ProcessResult  `json:"posting"`
	Intercompany intercompany.Decision `json:"intercompany"`
	// Charges is set when charge records were scheduled. Callers may wait on
	// it but the receipt is complete without it.
	Charges *sidechannel.Handle `json:"-"`
}

// VoidResult reports what a void removed.
type VoidResult struct {
	EventsVoided   int `json:"events_voided"`
	ChargesDeleted int `json:"charges_deleted"`
}

type Service struct {
	store    EventStore
	detector Detector
	charges  ChargeSink
	queue    *sidechannel.Queue
	logger   *slog.Logger
}

func NewService(store EventStore, detector Detector, charges ChargeSink, queue *sidechannel.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		detector: detector,
		charges:  charges,
		queue:    queue,
		logger:   logger.With(slog.String("component", "receipts")),
	}
}

// Receive emits one receipt event. An intercompany receipt produces one event
// touching both companies; its charge records are scheduled afterwards on the
// side channel and never affect the returned outcome.
func (s *Service) Receive(ctx context.Context, in ReceiptInput, actor string) (Outcome, error) {
	receipt := in.Receipt
	if receipt.ReceiptID == "" {
		return Outcome{}, fmt.Errorf("%w: receipt id required", shared.ErrInvalidPayload)
	}
	if in.ReceivedOn.IsZero() {
		return Outcome{}, fmt.Errorf("%w: received date required", shared.ErrInvalidPayload)
	}
	decision, err := s.detector.Detect(ctx, receipt)
	if err != nil {
		return Outcome{}, err
	}
	input := events.Input{
		EventDate:          in.ReceivedOn,
		SourceDocumentType: SourceType,
		SourceDocumentID:   receipt.ReceiptID,
		ActorID:            actor,
		ForcePost:          in.ForcePost,
	}
	if decision.Intercompany {
		data, err := s.detector.BuildEventData(ctx, receipt, decision)
		if err != nil {
			return Outcome{}, err
		}
		input.EventType, input.Payload = events.EventReceiptReceivedIntercompany, data
	} else {
		input.EventType, input.Payload = events.EventReceiptReceived, receipt
	}
	input.AffectedCompanyIDs = input.Payload.Companies()

	result := s.store.CreateAndProcess(ctx, input)
	outcome := Outcome{Posting: result, Intercompany: decision, RecordSaved: result.EventID != nil}
	if !outcome.RecordSaved {
		return outcome, result.Err
	}
	if !result.Success {
		s.logger.Warn("receipt saved but not posted",
			slog.String("receipt_id", receipt.ReceiptID),
			slog.String("event_id", result.EventID.String()),
			slog.Any("error", result.Err))
		return outcome, nil
	}
	if !decision.Intercompany {
		if in.ForcePost {
			s.dropCharges(ctx, receipt.ReceiptID)
		}
		return outcome, nil
	}
	batch := intercompany.NewChargeBatch(receipt, decision, in.ReceivedOn)
	batch.EventID = result.EventID.String()
	outcome.Charges = s.scheduleCharges(ctx, batch)
	return outcome, nil
}

// Void removes the receipt's journals, voids its events and drops its
// charge records.
func (s *Service) Void(ctx context.Context, receiptID, actor string) (VoidResult, error) {
	n, err := s.store.VoidBySourceDocument(ctx, SourceType, receiptID, "voided by "+actorOr(actor))
	if err != nil {
		return VoidResult{}, err
	}
	if n == 0 {
		return VoidResult{}, fmt.Errorf("%w: no active event for receipt %s", shared.ErrEventNotFound, receiptID)
	}
	return VoidResult{EventsVoided: n, ChargesDeleted: s.dropCharges(ctx, receiptID)}, nil
}

// dropCharges removes charge records left by a receipt's earlier events.
// Failures are logged; the ledger side is already consistent.
func (s *Service) dropCharges(ctx context.Context, receiptID string) int {
	deleted, err := s.detector.DeleteCharges(ctx, receiptID)
	if err != nil {
		s.logger.Warn("delete charge records", slog.String("receipt_id", receiptID), slog.Any("error", err))
	}
	return deleted
}

// Replace voids whatever the receipt posted before and posts it again, so
// exactly one journal set stays active.
func (s *Service) Replace(ctx context.Context, in ReceiptInput, actor string) (Outcome, error) {
	if _, err := s.Void(ctx, in.Receipt.ReceiptID, actor); err != nil && !errors.Is(err, shared.ErrEventNotFound) {
		return Outcome{}, err
	}
	in.ForcePost = false
	return s.Receive(ctx, in, actor)
}

func (s *Service) scheduleCharges(ctx context.Context, batch intercompany.ChargeBatch) *sidechannel.Handle {
	task := func(ctx context.Context) error {
		return s.charges.Dispatch(ctx, batch)
	}
	if s.queue != nil {
		return s.queue.Submit(ctx, "intercompany_charges", task)
	}
	err := task(context.WithoutCancel(ctx))
	if err != nil {
		s.logger.Error("intercompany charges not recorded", slog.String("receipt_id", batch.ReceiptID), slog.Any("error", err))
	}
	return sidechannel.Completed(err)
}

func actorOr(actor string) string {
	if actor == "" {
		return "system"
	}
	return actor
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchase(ctx context.Context, id string) (Purchase, error)
	ListConsumptions(ctx context.Context, lineID string) ([]Consumption, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// EventStore records and posts accounting events.
type EventStore interface {
	CreateAndProcess(ctx context.Context, in events.Input) events.ProcessResult
}

// Service coordinates inventory operations.
type Service struct {
	repo     RepositoryPort
	store    EventStore
	audit    AuditPort
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, store EventStore, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		store:    store,
		audit:    audit,
		validate: internalShared.NewValidator(),
		logger:   logger.With(slog.String("component", "inventory")),
		now:      time.Now,
	}
}

// RecordPurchase stores a purchase and fires INVENTORY_PURCHASE_RECORDED.
func (s *Service) RecordPurchase(ctx context.Context, input PurchaseInput, actor string) (events.Outcome[Purchase], error) {
	if err := s.validate.Struct(input); err != nil {
		return events.Outcome[Purchase]{}, fmt.Errorf("%w: %v", internalShared.ErrInvalidInput, err)
	}
	now := s.now().UTC()
	purchase := Purchase{
		ID:             uuid.NewString(),
		PurchaseNumber: input.PurchaseNumber,
		CompanyID:      input.CompanyID,
		Currency:       input.Currency,
		PurchaseDate:   input.PurchaseDate,
		PaymentMethod:  input.PaymentMethod,
		BankAccountID:  input.BankAccountID,
		WalletID:       input.WalletID,
		CreatedBy:      actor,
		CreatedAt:      now,
	}
	for i, in := range input.Lines {
		purchase.Lines = append(purchase.Lines, PurchaseLine{
			ID:         uuid.NewString(),
			PurchaseID: purchase.ID,
			LineNo:     i + 1,
			ItemName:   in.ItemName,
			Quantity:   in.Quantity,
			UnitCost:   in.UnitCost,
			ProjectID:  in.ProjectID,
			CompanyID:  purchase.CompanyID,
			Currency:   purchase.Currency,
		})
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertPurchase(ctx, purchase); err != nil {
			return err
		}
		return tx.InsertPurchaseLines(ctx, purchase.ID, purchase.Lines)
	})
	if err != nil {
		return events.Outcome[Purchase]{}, shared.Storage("insert purchase", err)
	}

	payload := events.InventoryPurchaseRecorded{
		PurchaseID:     purchase.ID,
		PurchaseNumber: purchase.PurchaseNumber,
		CompanyID:      purchase.CompanyID,
		Currency:       purchase.Currency,
		PaymentMethod:  purchase.PaymentMethod,
		BankAccountID:  purchase.BankAccountID,
		WalletID:       purchase.WalletID,
	}
	for _, l := range purchase.Lines {
		payload.Lines = append(payload.Lines, events.InventoryPurchaseLine{
			LineID: l.ID, ItemName: l.ItemName, Quantity: l.Quantity, UnitCost: l.UnitCost, ProjectID: l.ProjectID,
		})
	}
	result := s.fire(ctx, payload, purchase.PurchaseDate, SourcePurchase, purchase.ID, actor)
	s.record(ctx, actor, "inventory:purchase", "inventory_purchase", purchase.ID, map[string]any{
		"lines": len(purchase.Lines),
		"total": payload.Total().StringFixed(2),
	})
	return events.Outcome[Purchase]{Record: purchase, RecordSaved: true, Posting: result}, nil
}

// Consume takes quantity from a purchase line under a row lock. Asking for
// more than remains fails with ErrInsufficientQuantity and posts nothing.
func (s *Service) Consume(ctx context.Context, input ConsumeInput, actor string) (events.Outcome[Consumption], error) {
	if err := s.validate.Struct(input); err != nil {
		return events.Outcome[Consumption]{}, fmt.Errorf("%w: %v", internalShared.ErrInvalidInput, err)
	}
	var (
		line        PurchaseLine
		consumption Consumption
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		line, err = tx.GetLineForUpdate(ctx, input.LineID)
		if err != nil {
			return err
		}
		if remaining := line.Remaining(); input.Quantity.GreaterThan(remaining) {
			return fmt.Errorf("%w: line %s has %s left, requested %s", ErrInsufficientQuantity, line.ID, remaining.String(), input.Quantity.String())
		}
		if err := tx.AddConsumed(ctx, line.ID, input.Quantity); err != nil {
			return err
		}
		projectID := input.ProjectID
		if projectID == "" {
			projectID = line.ProjectID
		}
		consumption = Consumption{
			ID:                 uuid.NewString(),
			PurchaseLineID:     line.ID,
			Quantity:           input.Quantity,
			UnitCost:           line.UnitCost,
			Amount:             internalShared.Round2(input.Quantity.Mul(line.UnitCost)),
			ProjectID:          projectID,
			ExpenseAccountCode: input.ExpenseAccountCode,
			ConsumedOn:         input.ConsumedOn,
			CreatedBy:          actor,
			CreatedAt:          s.now().UTC(),
		}
		return tx.InsertConsumption(ctx, consumption)
	})
	if err != nil {
		if errors.Is(err, internalShared.ErrInvalidInput) || errors.Is(err, internalShared.ErrNotFound) {
			return events.Outcome[Consumption]{}, err
		}
		return events.Outcome[Consumption]{}, shared.Storage("consume inventory", err)
	}

	payload := events.InventoryConsumed{
		ConsumptionID:      consumption.ID,
		PurchaseLineID:     line.ID,
		CompanyID:          line.CompanyID,
		Currency:           line.Currency,
		ItemName:           line.ItemName,
		Quantity:           consumption.Quantity,
		UnitCost:           consumption.UnitCost,
		ProjectID:          consumption.ProjectID,
		ExpenseAccountCode: consumption.ExpenseAccountCode,
	}
	result := s.fire(ctx, payload, consumption.ConsumedOn, SourceConsumption, consumption.ID, actor)
	s.record(ctx, actor, "inventory:consume", "inventory_consumption", consumption.ID, map[string]any{
		"line_id":  line.ID,
		"quantity": consumption.Quantity.String(),
		"amount":   consumption.Amount.StringFixed(2),
	})
	return events.Outcome[Consumption]{Record: consumption, RecordSaved: true, Posting: result}, nil
}

// GetPurchase loads a purchase with its lines.
func (s *Service) GetPurchase(ctx context.Context, id string) (Purchase, error) {
	p, err := s.repo.GetPurchase(ctx, id)
	if err != nil && !errors.Is(err, internalShared.ErrNotFound) {
		return Purchase{}, shared.Storage("get purchase", err)
	}
	return p, err
}

// Consumptions lists what was taken from a purchase line.
func (s *Service) Consumptions(ctx context.Context, lineID string) ([]Consumption, error) {
	out, err := s.repo.ListConsumptions(ctx, lineID)
	if err != nil {
		return nil, shared.Storage("list consumptions", err)
	}
	return out, nil
}

func (s *Service) fire(ctx context.Context, payload events.Payload, date time.Time, sourceType, sourceID, actor string) events.ProcessResult {
	result := s.store.CreateAndProcess(ctx, events.Input{
		EventType:          payload.EventType(),
		EventDate:          date,
		AffectedCompanyIDs: payload.Companies(),
		Payload:            payload,
		SourceDocumentType: sourceType,
		SourceDocumentID:   sourceID,
		ActorID:            actor,
	})
	if !result.Success {
		s.logger.Warn("inventory event not posted",
			slog.String("event_type", string(payload.EventType())),
			slog.String("source_id", sourceID),
			slog.Any("error", result.Err))
	}
	return result
}

func (s *Service) record(ctx context.Context, actor, action, entity, id string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, internalShared.AuditLog{ActorID: actor, Action: action, Entity: entity, EntityID: id, Meta: meta}); err != nil {
		s.logger.Warn("audit inventory", slog.String("entity_id", id), slog.Any("error", err))
	}
}

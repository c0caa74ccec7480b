package intercompany

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/mappings"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/directory"
)

// Accounts is the subset of the account resolver the generator needs.
type Accounts interface {
	Resolve(ctx context.Context, companyID string, role mappings.Role, ref string) (string, error)
	BankAccount(ctx context.Context, id string) (directory.BankAccount, error)
}

// Generator detects intercompany receipts and records their charges.
type Generator struct {
	accounts Accounts
	charges  Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewGenerator(accounts Accounts, charges Repository, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		accounts: accounts,
		charges:  charges,
		logger:   logger.With(slog.String("component", "intercompany")),
		now:      time.Now,
	}
}

// WithNow overrides the clock used for CreatedAt.
func (g *Generator) WithNow(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Detect reports whether money for the receipt landed in a bank account of a
// company other than the charter company. Only one foreign company per
// receipt is supported.
func (g *Generator) Detect(ctx context.Context, receipt events.ReceiptReceived) (Decision, error) {
	decision := Decision{CharterCompanyID: receipt.CompanyID, ReceivedAmount: decimal.Zero}
	for _, payment := range receipt.Payments {
		if payment.Method != events.PaymentBankTransfer {
			continue
		}
		account, err := g.accounts.BankAccount(ctx, payment.BankAccountID)
		if err != nil {
			return Decision{}, err
		}
		if account.CompanyID == receipt.CompanyID {
			continue
		}
		if decision.ReceivingCompanyID != "" && decision.ReceivingCompanyID != account.CompanyID {
			return Decision{}, fmt.Errorf("%w: receipt %s paid into banks of %s and %s", shared.ErrInvalidPayload,
				receipt.ReceiptID, decision.ReceivingCompanyID, account.CompanyID)
		}
		decision.Intercompany = true
		decision.ReceivingCompanyID = account.CompanyID
		decision.ReceivedAmount = decision.ReceivedAmount.Add(payment.Amount)
	}
	return decision, nil
}

// BuildEventData resolves the clearing accounts of both companies.
func (g *Generator) BuildEventData(ctx context.Context, receipt events.ReceiptReceived, decision Decision) (events.ReceiptReceivedIntercompany, error) {
	if !decision.Intercompany {
		return events.ReceiptReceivedIntercompany{}, fmt.Errorf("%w: receipt %s is not intercompany", shared.ErrInvalidPayload, receipt.ReceiptID)
	}
	dueFrom, err := g.accounts.Resolve(ctx, decision.CharterCompanyID, mappings.RoleIntercompanyReceivable, decision.ReceivingCompanyID)
	if err != nil {
		return events.ReceiptReceivedIntercompany{}, err
	}
	dueTo, err := g.accounts.Resolve(ctx, decision.ReceivingCompanyID, mappings.RoleIntercompanyPayable, decision.CharterCompanyID)
	if err != nil {
		return events.ReceiptReceivedIntercompany{}, err
	}
	return events.ReceiptReceivedIntercompany{
		Receipt:            receipt,
		CharterCompanyID:   decision.CharterCompanyID,
		ReceivingCompanyID: decision.ReceivingCompanyID,
		DueFromAccountCode: dueFrom,
		DueToAccountCode:   dueTo,
		DeferredRevenue:    receipt.DeferredRevenue,
	}, nil
}

// NewChargeBatch splits the collected amount across the receipt's projects in
// proportion to their line amounts. Lines without a project share one
// unassigned allocation. The last allocation absorbs rounding.
func NewChargeBatch(receipt events.ReceiptReceived, decision Decision, charterDate time.Time) ChargeBatch {
	batch := ChargeBatch{
		ReceiptID:       receipt.ReceiptID,
		PayingCompanyID: decision.ReceivingCompanyID,
		OwedToCompanyID: decision.CharterCompanyID,
		Currency:        receipt.Currency,
		CharterDate:     charterDate,
	}
	weights := map[string]decimal.Decimal{}
	var order []string
	for _, line := range receipt.Lines {
		if _, ok := weights[line.ProjectID]; !ok {
			order = append(order, line.ProjectID)
			weights[line.ProjectID] = decimal.Zero
		}
		weights[line.ProjectID] = weights[line.ProjectID].Add(line.Amount)
	}
	sort.Strings(order)
	subtotal := receipt.Subtotal()
	remaining := decision.ReceivedAmount
	for i, project := range order {
		share := remaining
		if i < len(order)-1 && subtotal.IsPositive() {
			share = decision.ReceivedAmount.Mul(weights[project]).Div(subtotal).Round(2)
		}
		remaining = remaining.Sub(share)
		batch.Allocations = append(batch.Allocations, Allocation{ProjectID: project, Amount: share})
	}
	return batch
}

// RecordCharges stores one charge record per allocation, replacing charges
// left by earlier events of the same receipt. Re-running a batch leaves its
// records untouched. A batch whose event is no longer active records nothing
// and returns ErrBatchSuperseded.
func (g *Generator) RecordCharges(ctx context.Context, batch ChargeBatch) ([]ChargeRecord, error) {
	if batch.ReceiptID == "" || batch.PayingCompanyID == "" || batch.OwedToCompanyID == "" {
		return nil, fmt.Errorf("%w: incomplete charge batch", shared.ErrInvalidPayload)
	}
	eventID, err := uuid.Parse(batch.EventID)
	if err != nil {
		return nil, fmt.Errorf("%w: charge batch event id %q", shared.ErrInvalidPayload, batch.EventID)
	}
	now := g.now().UTC()
	records := make([]ChargeRecord, 0, len(batch.Allocations))
	for _, alloc := range batch.Allocations {
		if !alloc.Amount.IsPositive() {
			continue
		}
		records = append(records, ChargeRecord{
			ID:              ChargeID(batch.ReceiptID, alloc.ProjectID),
			ReceiptID:       batch.ReceiptID,
			EventID:         eventID,
			PayingCompanyID: batch.PayingCompanyID,
			OwedToCompanyID: batch.OwedToCompanyID,
			Amount:          alloc.Amount,
			Currency:        batch.Currency,
			ProjectID:       alloc.ProjectID,
			CharterDate:     batch.CharterDate,
			CreatedAt:       now,
		})
	}
	inserted, err := g.charges.Replace(ctx, batch.ReceiptID, eventID, records)
	if errors.Is(err, ErrBatchSuperseded) {
		g.logger.Info("stale charge batch skipped",
			slog.String("receipt_id", batch.ReceiptID),
			slog.String("event_id", batch.EventID))
		return nil, err
	}
	if err != nil {
		return nil, shared.Storage("insert charge records", err)
	}
	g.logger.Info("intercompany charges recorded",
		slog.String("receipt_id", batch.ReceiptID),
		slog.String("event_id", batch.EventID),
		slog.Int("records", len(records)),
		slog.Int("inserted", inserted))
	return records, nil
}

// Charges lists the charge records of a receipt.
func (g *Generator) Charges(ctx context.Context, receiptID string) ([]ChargeRecord, error) {
	records, err := g.charges.ListByReceipt(ctx, receiptID)
	if err != nil {
		return nil, shared.Storage("list charge records", err)
	}
	return records, nil
}

// DeleteCharges removes the charge records of a voided receipt.
func (g *Generator) DeleteCharges(ctx context.Context, receiptID string) (int, error) {
	n, err := g.charges.DeleteByReceipt(ctx, receiptID)
	if err != nil {
		return 0, shared.Storage("delete charge records", err)
	}
	return n, nil
}

// Dispatch records the batch in process. It satisfies the receipts charge
// sink; a superseded batch is not an error.
func (g *Generator) Dispatch(ctx context.Context, batch ChargeBatch) error {
	_, err := g.RecordCharges(ctx, batch)
	if errors.Is(err, ErrBatchSuperseded) {
		return nil
	}
	return err
}

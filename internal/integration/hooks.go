// Package integration turns accounting events into proposed journals.
package integration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/mappings"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/directory"
)

// Accounts resolves posting roles to GL codes.
type Accounts interface {
	Resolve(ctx context.Context, companyID string, role mappings.Role, ref string) (string, error)
	BankAccount(ctx context.Context, id string) (directory.BankAccount, error)
	ValidateCode(code string) error
}

// Rates resolves the FX snapshot attached to each journal.
type Rates interface {
	Resolve(ctx context.Context, currency string, date time.Time) (fx.Snapshot, error)
}

// Handlers builds journals for every event type. Handlers only read: they
// never write to storage.
type Handlers struct {
	accounts  Accounts
	rates     Rates
	companies directory.Companies
	projects  directory.Projects
	logger    *slog.Logger
}

// NewHandlers constructs the event handlers. companies and projects may be
// nil; descriptions then fall back to ids.
func NewHandlers(accounts Accounts, rates Rates, companies directory.Companies, projects directory.Projects, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		accounts:  accounts,
		rates:     rates,
		companies: companies,
		projects:  projects,
		logger:    logger.With(slog.String("component", "event_handlers")),
	}
}

// Build dispatches on the payload type.
func (h *Handlers) Build(ctx context.Context, event events.Event) ([]journals.ProposedJournal, error) {
	switch p := event.Payload.(type) {
	case events.ReceiptReceived:
		return h.receiptReceived(ctx, event, p)
	case events.ReceiptReceivedIntercompany:
		return h.receiptReceivedIntercompany(ctx, event, p)
	case events.ExpenseApproved:
		return h.expenseApproved(ctx, event, p)
	case events.InventoryPurchaseRecorded:
		return h.inventoryPurchaseRecorded(ctx, event, p)
	case events.InventoryConsumed:
		return h.inventoryConsumed(ctx, event, p)
	case events.PettyCashExpenseCreated:
		// Wallet balance only; the P&L journal comes from the linked expense.
		return nil, nil
	case events.PettyCashTopUpCompleted:
		return h.walletFunding(ctx, event, p.CompanyID, p.Currency, p.WalletID, p.BankAccountID, p.Amount, "Petty cash top-up "+p.TopUpID)
	case events.PettyCashReimbursementPaid:
		return h.walletFunding(ctx, event, p.CompanyID, p.Currency, p.WalletID, p.BankAccountID, p.Amount, "Petty cash reimbursement "+p.ReimbursementID)
	case nil:
		return nil, fmt.Errorf("%w: event %s has no payload", shared.ErrInvalidPayload, event.ID)
	default:
		return nil, fmt.Errorf("%w: no handler for %T", shared.ErrInvalidPayload, p)
	}
}

func (h *Handlers) journal(ctx context.Context, event events.Event, companyID, currency, description string) (journals.ProposedJournal, error) {
	snap, err := h.rates.Resolve(ctx, currency, event.EventDate)
	if err != nil {
		return journals.ProposedJournal{}, fmt.Errorf("fx %s on %s: %w", currency, event.EventDate.Format(time.DateOnly), err)
	}
	return journals.ProposedJournal{
		CompanyID:   companyID,
		EntryDate:   event.EventDate,
		Description: description,
		Currency:    snap.From,
		FXRate:      snap.Rate,
		FXSource:    snap.Source,
	}, nil
}

// settlementAccount resolves the credit side for money paid out.
func (h *Handlers) settlementAccount(ctx context.Context, companyID string, method events.PaymentMethod, bankAccountID, walletID string) (string, error) {
	switch method {
	case events.PaymentBankTransfer:
		return h.accounts.Resolve(ctx, companyID, mappings.RoleBankAccount, bankAccountID)
	case events.PaymentCash:
		return h.accounts.Resolve(ctx, companyID, mappings.RoleCash, "")
	case events.PaymentPettyCash:
		return h.accounts.Resolve(ctx, companyID, mappings.RolePettyCashWallet, walletID)
	case events.PaymentPayable:
		return h.accounts.Resolve(ctx, companyID, mappings.RoleAccountsPayable, "")
	}
	return "", fmt.Errorf("%w: unknown payment method %q", shared.ErrInvalidPayload, method)
}

// explicitOr validates code when given, otherwise resolves role.
func (h *Handlers) explicitOr(ctx context.Context, companyID, code string, role mappings.Role) (string, error) {
	if code != "" {
		if err := h.accounts.ValidateCode(code); err != nil {
			return "", err
		}
		return code, nil
	}
	return h.accounts.Resolve(ctx, companyID, role, "")
}

func (h *Handlers) companyName(ctx context.Context, id string) string {
	if h.companies == nil {
		return id
	}
	company, err := h.companies.GetCompany(ctx, id)
	if err != nil || company.Name == "" {
		h.logger.Debug("company name lookup", slog.String("company_id", id), slog.Any("error", err))
		return id
	}
	return company.Name
}

func (h *Handlers) projectName(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if h.projects == nil {
		return id
	}
	project, err := h.projects.GetProject(ctx, id)
	if err != nil || project.Name == "" {
		h.logger.Debug("project name lookup", slog.String("project_id", id), slog.Any("error", err))
		return id
	}
	return project.Name
}

var _ events.Processor = (*Handlers)(nil)

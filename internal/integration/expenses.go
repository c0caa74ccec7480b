package integration

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/mappings"
)

func (h *Handlers) expenseApproved(ctx context.Context, event events.Event, p events.ExpenseApproved) ([]journals.ProposedJournal, error) {
	ref := documentRef(p.ExpenseNumber, p.ExpenseID)
	journal, err := h.journal(ctx, event, p.CompanyID, p.Currency, label("Expense "+ref, p.VendorName))
	if err != nil {
		return nil, err
	}
	for _, item := range p.Lines {
		code, err := h.explicitOr(ctx, p.CompanyID, item.AccountCode, mappings.RoleDefaultExpense)
		if err != nil {
			return nil, err
		}
		line := journals.Debit(code, item.Amount, label(item.Description, h.projectName(ctx, item.ProjectID)))
		journal.Lines = append(journal.Lines, line.WithProject(item.ProjectID))
	}
	if p.VATAmount.IsPositive() {
		code, err := h.accounts.Resolve(ctx, p.CompanyID, mappings.RoleVATInput, "")
		if err != nil {
			return nil, err
		}
		journal.Lines = append(journal.Lines, journals.Debit(code, p.VATAmount, "Input VAT"))
	}
	settlement, err := h.settlementAccount(ctx, p.CompanyID, p.PaymentMethod, p.BankAccountID, p.WalletID)
	if err != nil {
		return nil, err
	}
	total := sumAmounts(p.Subtotal(), p.VATAmount)
	journal.Lines = append(journal.Lines, journals.Credit(settlement, total, settlementLabel(p.PaymentMethod)+" "+ref))
	return []journals.ProposedJournal{journal}, nil
}

func (h *Handlers) inventoryPurchaseRecorded(ctx context.Context, event events.Event, p events.InventoryPurchaseRecorded) ([]journals.ProposedJournal, error) {
	ref := documentRef(p.PurchaseNumber, p.PurchaseID)
	journal, err := h.journal(ctx, event, p.CompanyID, p.Currency, "Inventory purchase "+ref)
	if err != nil {
		return nil, err
	}
	inventory, err := h.accounts.Resolve(ctx, p.CompanyID, mappings.RoleInventoryAsset, "")
	if err != nil {
		return nil, err
	}
	total := decimal.Zero
	for _, item := range p.Lines {
		amount := item.Amount()
		total = total.Add(amount)
		line := journals.Debit(inventory, amount, label(item.ItemName, item.Quantity.String()+" @ "+item.UnitCost.StringFixed(2)))
		journal.Lines = append(journal.Lines, line.WithProject(item.ProjectID))
	}
	settlement, err := h.settlementAccount(ctx, p.CompanyID, p.PaymentMethod, p.BankAccountID, p.WalletID)
	if err != nil {
		return nil, err
	}
	journal.Lines = append(journal.Lines, journals.Credit(settlement, total, settlementLabel(p.PaymentMethod)+" "+ref))
	return []journals.ProposedJournal{journal}, nil
}

func (h *Handlers) inventoryConsumed(ctx context.Context, event events.Event, p events.InventoryConsumed) ([]journals.ProposedJournal, error) {
	journal, err := h.journal(ctx, event, p.CompanyID, p.Currency, label("Inventory consumed", p.ItemName, h.projectName(ctx, p.ProjectID)))
	if err != nil {
		return nil, err
	}
	expense, err := h.explicitOr(ctx, p.CompanyID, p.ExpenseAccountCode, mappings.RoleDefaultExpense)
	if err != nil {
		return nil, err
	}
	inventory, err := h.accounts.Resolve(ctx, p.CompanyID, mappings.RoleInventoryAsset, "")
	if err != nil {
		return nil, err
	}
	amount := p.Amount()
	journal.Lines = append(journal.Lines,
		journals.Debit(expense, amount, label(p.ItemName, p.Quantity.String()+" consumed")).WithProject(p.ProjectID),
		journals.Credit(inventory, amount, label(p.ItemName, "inventory")),
	)
	return []journals.ProposedJournal{journal}, nil
}

// walletFunding moves money from a bank account into a petty cash wallet.
func (h *Handlers) walletFunding(ctx context.Context, event events.Event, companyID, currency, walletID, bankAccountID string, amount decimal.Decimal, description string) ([]journals.ProposedJournal, error) {
	journal, err := h.journal(ctx, event, companyID, currency, description)
	if err != nil {
		return nil, err
	}
	wallet, err := h.accounts.Resolve(ctx, companyID, mappings.RolePettyCashWallet, walletID)
	if err != nil {
		return nil, err
	}
	bank, err := h.accounts.Resolve(ctx, companyID, mappings.RoleBankAccount, bankAccountID)
	if err != nil {
		return nil, err
	}
	journal.Lines = append(journal.Lines,
		journals.Debit(wallet, amount, "Petty cash wallet"),
		journals.Credit(bank, amount, "Bank"),
	)
	return []journals.ProposedJournal{journal}, nil
}

func settlementLabel(method events.PaymentMethod) string {
	switch method {
	case events.PaymentBankTransfer:
		return "Bank transfer"
	case events.PaymentCash:
		return "Cash"
	case events.PaymentPettyCash:
		return "Petty cash"
	default:
		return "Payable"
	}
}

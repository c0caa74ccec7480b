package integration

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/mappings"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

// receiptReceived debits each payment's bank or cash account and credits
// revenue per line plus output VAT.
func (h *Handlers) receiptReceived(ctx context.Context, event events.Event, p events.ReceiptReceived) ([]journals.ProposedJournal, error) {
	ref := documentRef(p.ReceiptNumber, p.ReceiptID)
	journal, err := h.journal(ctx, event, p.CompanyID, p.Currency, label("Receipt "+ref, p.CustomerName))
	if err != nil {
		return nil, err
	}
	for _, payment := range p.Payments {
		line, err := h.paymentLine(ctx, p.CompanyID, payment, ref)
		if err != nil {
			return nil, err
		}
		journal.Lines = append(journal.Lines, line)
	}
	credits, err := h.revenueLines(ctx, p.CompanyID, p, p.DeferredRevenue)
	if err != nil {
		return nil, err
	}
	journal.Lines = append(journal.Lines, credits...)
	return []journals.ProposedJournal{journal}, nil
}

// receiptReceivedIntercompany books a charter receipt collected by another
// group company. The receiving company debits its bank and owes the charter
// company; the charter company debits the amount due and recognises revenue.
// Payments into the charter company's own accounts stay on its journal.
func (h *Handlers) receiptReceivedIntercompany(ctx context.Context, event events.Event, p events.ReceiptReceivedIntercompany) ([]journals.ProposedJournal, error) {
	receipt := p.Receipt
	charterID, receivingID := p.CharterCompanyID, p.ReceivingCompanyID
	if err := h.accounts.ValidateCode(p.DueFromAccountCode); err != nil {
		return nil, err
	}
	if err := h.accounts.ValidateCode(p.DueToAccountCode); err != nil {
		return nil, err
	}
	ref := documentRef(receipt.ReceiptNumber, receipt.ReceiptID)
	charterName, receivingName := h.companyName(ctx, charterID), h.companyName(ctx, receivingID)

	receiving, err := h.journal(ctx, event, receivingID, receipt.Currency,
		fmt.Sprintf("Receipt %s collected on behalf of %s", ref, charterName))
	if err != nil {
		return nil, err
	}
	charter, err := h.journal(ctx, event, charterID, receipt.Currency,
		fmt.Sprintf("Receipt %s collected by %s", ref, receivingName))
	if err != nil {
		return nil, err
	}

	due := decimal.Zero
	var ownPayments []journals.ProposedLine
	for _, payment := range receipt.Payments {
		owner := charterID
		if payment.Method == events.PaymentBankTransfer {
			account, err := h.accounts.BankAccount(ctx, payment.BankAccountID)
			if err != nil {
				return nil, err
			}
			owner = account.CompanyID
		}
		switch owner {
		case receivingID:
			line, err := h.paymentLine(ctx, receivingID, payment, ref)
			if err != nil {
				return nil, err
			}
			receiving.Lines = append(receiving.Lines, line)
			due = due.Add(payment.Amount)
		case charterID:
			line, err := h.paymentLine(ctx, charterID, payment, ref)
			if err != nil {
				return nil, err
			}
			ownPayments = append(ownPayments, line)
		default:
			return nil, &shared.AccountResolutionError{
				CompanyID: charterID,
				Role:      string(mappings.RoleBankAccount),
				Ref:       payment.BankAccountID,
				Err:       fmt.Errorf("bank account belongs to company %s, outside this receipt", owner),
			}
		}
	}
	if !due.IsPositive() {
		return nil, fmt.Errorf("%w: no payment reached company %s", shared.ErrInvalidPayload, receivingID)
	}

	receiving.Lines = append(receiving.Lines,
		journals.Credit(p.DueToAccountCode, due, fmt.Sprintf("Due to %s", charterName)))
	charter.Lines = append(charter.Lines,
		journals.Debit(p.DueFromAccountCode, due, fmt.Sprintf("Due from %s", receivingName)))
	charter.Lines = append(charter.Lines, ownPayments...)

	credits, err := h.revenueLines(ctx, charterID, receipt, p.DeferredRevenue || receipt.DeferredRevenue)
	if err != nil {
		return nil, err
	}
	charter.Lines = append(charter.Lines, credits...)
	return []journals.ProposedJournal{charter, receiving}, nil
}

func (h *Handlers) paymentLine(ctx context.Context, companyID string, payment events.ReceiptPayment, ref string) (journals.ProposedLine, error) {
	switch payment.Method {
	case events.PaymentBankTransfer:
		code, err := h.accounts.Resolve(ctx, companyID, mappings.RoleBankAccount, payment.BankAccountID)
		if err != nil {
			return journals.ProposedLine{}, err
		}
		return journals.Debit(code, payment.Amount, "Bank transfer "+ref), nil
	case events.PaymentCash:
		code, err := h.accounts.Resolve(ctx, companyID, mappings.RoleCash, "")
		if err != nil {
			return journals.ProposedLine{}, err
		}
		return journals.Debit(code, payment.Amount, "Cash "+ref), nil
	}
	return journals.ProposedLine{}, fmt.Errorf("%w: receipt payment method %q", shared.ErrInvalidPayload, payment.Method)
}

func (h *Handlers) revenueLines(ctx context.Context, companyID string, p events.ReceiptReceived, deferred bool) ([]journals.ProposedLine, error) {
	lines := make([]journals.ProposedLine, 0, len(p.Lines)+1)
	deferredCode := ""
	if deferred {
		code, err := h.accounts.Resolve(ctx, companyID, mappings.RoleDeferredRevenue, "")
		if err != nil {
			return nil, err
		}
		deferredCode = code
	}
	for _, item := range p.Lines {
		code := deferredCode
		if code == "" {
			resolved, err := h.explicitOr(ctx, companyID, item.RevenueAccountCode, mappings.RoleCharterRevenue)
			if err != nil {
				return nil, err
			}
			code = resolved
		}
		line := journals.Credit(code, item.Amount, label(item.Description, h.projectName(ctx, item.ProjectID)))
		lines = append(lines, line.WithProject(item.ProjectID))
	}
	if p.VATAmount.IsPositive() {
		code, err := h.accounts.Resolve(ctx, companyID, mappings.RoleVATPayable, "")
		if err != nil {
			return nil, err
		}
		lines = append(lines, journals.Credit(code, p.VATAmount, "Output VAT"))
	}
	if len(lines) == 0 {
		return nil, errors.New("integration: receipt has no revenue lines")
	}
	return lines, nil
}

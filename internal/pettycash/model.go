// Package pettycash tracks captain wallets. A wallet balance is always derived
// from its movements on read; no running total is stored.
package pettycash

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

const (
	SourceExpense       = "petty_cash_expense"
	SourceTopUp         = "petty_cash_topup"
	SourceReimbursement = "petty_cash_reimbursement"
	// SourceLinkedExpense is the source type of the ledger expense created
	// when a wallet expense is linked.
	SourceLinkedExpense = "expense"
)

var (
	ErrWalletNotFound   = fmt.Errorf("pettycash: wallet %w", internalShared.ErrNotFound)
	ErrExpenseNotFound  = fmt.Errorf("pettycash: expense %w", internalShared.ErrNotFound)
	ErrTransferNotFound = fmt.Errorf("pettycash: transfer %w", internalShared.ErrNotFound)
	// ErrStatus reports a transition from the wrong status.
	ErrStatus = fmt.Errorf("pettycash: invalid status transition: %w", internalShared.ErrConflict)
)

type ExpenseStatus string

const (
	ExpenseSubmitted ExpenseStatus = "submitted"
	ExpenseLinked    ExpenseStatus = "linked"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
)

type Wallet struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CreatedAt      time.Time       `json:"created_at"`
}

type Expense struct {
	ID              string          `json:"id"`
	WalletID        string          `json:"wallet_id"`
	CompanyID       string          `json:"company_id"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ProjectID       string          `json:"project_id,omitempty"`
	ExpenseDate     time.Time       `json:"expense_date"`
	Status          ExpenseStatus   `json:"status"`
	LinkedExpenseID string          `json:"linked_expense_id,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
	LinkedAt        *time.Time      `json:"linked_at,omitempty"`
}

// Transfer is money moved from a company bank into a wallet: a top-up or a
// reimbursement of the captain's own spending.
type Transfer struct {
	ID            string          `json:"id"`
	WalletID      string          `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
	BankAccountID string          `json:"bank_account_id"`
	Status        TransferStatus  `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// Balance is a wallet's derived balance and its components.
type Balance struct {
	WalletID       string          `json:"wallet_id"`
	Currency       string          `json:"currency"`
	Initial        decimal.Decimal `json:"initial"`
	TopUps         decimal.Decimal `json:"top_ups"`
	Reimbursements decimal.Decimal `json:"reimbursements"`
	Expenses       decimal.Decimal `json:"expenses"`
	Balance        decimal.Decimal `json:"balance"`
}

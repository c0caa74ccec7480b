package pettycash

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransferKind selects the top-up or reimbursement table.
type TransferKind string

const (
	KindTopUp         TransferKind = "topup"
	KindReimbursement TransferKind = "reimbursement"
)

func (k TransferKind) table() (string, error) {
	switch k {
	case KindTopUp:
		return "petty_cash_topups", nil
	case KindReimbursement:
		return "petty_cash_reimbursements", nil
	}
	return "", fmt.Errorf("pettycash: unknown transfer kind %q", k)
}

// Repository persists wallets and their movements. Balance sums movements on
// every call.
type Repository interface {
	InsertWallet(ctx context.Context, wallet Wallet) error
	GetWallet(ctx context.Context, id string) (Wallet, error)
	Balance(ctx context.Context, walletID string) (Balance, error)
	InsertExpense(ctx context.Context, expense Expense) error
	GetExpense(ctx context.Context, id string) (Expense, error)
	// LinkExpense moves a submitted expense to linked, else ErrStatus.
	LinkExpense(ctx context.Context, id, linkedExpenseID string, at time.Time) error
	InsertTransfer(ctx context.Context, kind TransferKind, transfer Transfer) error
	GetTransfer(ctx context.Context, kind TransferKind, id string) (Transfer, error)
	// CompleteTransfer moves a pending transfer to completed, else ErrStatus.
	CompleteTransfer(ctx context.Context, kind TransferKind, id string, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) InsertWallet(ctx context.Context, w Wallet) error {
	_, err := r.db.Exec(ctx, `INSERT INTO petty_cash_wallets (id, company_id, name, currency, initial_balance, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`, w.ID, w.CompanyID, w.Name, w.Currency, w.InitialBalance, w.CreatedAt)
	return err
}

func (r *repository) GetWallet(ctx context.Context, id string) (Wallet, error) {
	var w Wallet
	err := r.db.QueryRow(ctx, `SELECT id, company_id, name, currency, initial_balance, created_at
FROM petty_cash_wallets WHERE id = $1`, id).Scan(&w.ID, &w.CompanyID, &w.Name, &w.Currency, &w.InitialBalance, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

func (r *repository) Balance(ctx context.Context, walletID string) (Balance, error) {
	b := Balance{WalletID: walletID}
	err := r.db.QueryRow(ctx, `SELECT w.currency, w.initial_balance,
  COALESCE((SELECT SUM(amount) FROM petty_cash_topups t WHERE t.wallet_id = w.id AND t.status = 'completed'), 0),
  COALESCE((SELECT SUM(amount) FROM petty_cash_reimbursements p WHERE p.wallet_id = w.id AND p.status = 'completed'), 0),
  COALESCE((SELECT SUM(amount) FROM petty_cash_expenses e WHERE e.wallet_id = w.id AND e.status IN ('submitted', 'linked')), 0)
FROM petty_cash_wallets w WHERE w.id = $1`, walletID).Scan(&b.Currency, &b.Initial, &b.TopUps, &b.Reimbursements, &b.Expenses)
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, ErrWalletNotFound
	}
	if err != nil {
		return Balance{}, err
	}
	b.Balance = b.Initial.Add(b.TopUps).Add(b.Reimbursements).Sub(b.Expenses)
	return b, nil
}

func (r *repository) InsertExpense(ctx context.Context, e Expense) error {
	_, err := r.db.Exec(ctx, `INSERT INTO petty_cash_expenses (id, wallet_id, company_id, amount, description, project_id, expense_date, status, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10)`,
		e.ID, e.WalletID, e.CompanyID, e.Amount, e.Description, e.ProjectID, e.ExpenseDate, e.Status, e.CreatedBy, e.CreatedAt)
	return err
}

func (r *repository) GetExpense(ctx context.Context, id string) (Expense, error) {
	var e Expense
	err := r.db.QueryRow(ctx, `SELECT id, wallet_id, company_id, amount, description, COALESCE(project_id, ''), expense_date, status,
  COALESCE(linked_expense_id, ''), created_by, created_at, linked_at
FROM petty_cash_expenses WHERE id = $1`, id).Scan(&e.ID, &e.WalletID, &e.CompanyID, &e.Amount, &e.Description, &e.ProjectID,
		&e.ExpenseDate, &e.Status, &e.LinkedExpenseID, &e.CreatedBy, &e.CreatedAt, &e.LinkedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Expense{}, ErrExpenseNotFound
	}
	return e, err
}

func (r *repository) LinkExpense(ctx context.Context, id, linkedExpenseID string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE petty_cash_expenses SET status = 'linked', linked_expense_id = $2, linked_at = $3
WHERE id = $1 AND status = 'submitted'`, id, linkedExpenseID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatus
	}
	return nil
}

func (r *repository) InsertTransfer(ctx context.Context, kind TransferKind, t Transfer) error {
	table, err := kind.table()
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO `+table+` (id, wallet_id, amount, bank_account_id, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`, t.ID, t.WalletID, t.Amount, t.BankAccountID, t.Status, t.CreatedAt)
	return err
}

func (r *repository) GetTransfer(ctx context.Context, kind TransferKind, id string) (Transfer, error) {
	table, err := kind.table()
	if err != nil {
		return Transfer{}, err
	}
	var t Transfer
	err = r.db.QueryRow(ctx, `SELECT id, wallet_id, amount, bank_account_id, status, created_at, completed_at
FROM `+table+` WHERE id = $1`, id).Scan(&t.ID, &t.WalletID, &t.Amount, &t.BankAccountID, &t.Status, &t.CreatedAt, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transfer{}, ErrTransferNotFound
	}
	return t, err
}

func (r *repository) CompleteTransfer(ctx context.Context, kind TransferKind, id string, at time.Time) error {
	table, err := kind.table()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE `+table+` SET status = 'completed', completed_at = $2 WHERE id = $1 AND status = 'pending'`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatus
	}
	return nil
}

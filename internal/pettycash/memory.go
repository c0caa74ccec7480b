package pettycash

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps wallets in process.
type MemoryRepository struct {
	mu        sync.Mutex
	wallets   map[string]Wallet
	expenses  map[string]Expense
	transfers map[TransferKind]map[string]Transfer
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		wallets:  map[string]Wallet{},
		expenses: map[string]Expense{},
		transfers: map[TransferKind]map[string]Transfer{
			KindTopUp:         {},
			KindReimbursement: {},
		},
	}
}

func (m *MemoryRepository) InsertWallet(_ context.Context, w Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[w.ID] = w
	return nil
}

func (m *MemoryRepository) GetWallet(_ context.Context, id string) (Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (m *MemoryRepository) Balance(_ context.Context, walletID string) (Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[walletID]
	if !ok {
		return Balance{}, ErrWalletNotFound
	}
	b := Balance{WalletID: walletID, Currency: w.Currency, Initial: w.InitialBalance}
	for _, t := range m.transfers[KindTopUp] {
		if t.WalletID == walletID && t.Status == TransferCompleted {
			b.TopUps = b.TopUps.Add(t.Amount)
		}
	}
	for _, t := range m.transfers[KindReimbursement] {
		if t.WalletID == walletID && t.Status == TransferCompleted {
			b.Reimbursements = b.Reimbursements.Add(t.Amount)
		}
	}
	for _, e := range m.expenses {
		if e.WalletID == walletID {
			b.Expenses = b.Expenses.Add(e.Amount)
		}
	}
	b.Balance = b.Initial.Add(b.TopUps).Add(b.Reimbursements).Sub(b.Expenses)
	return b, nil
}

func (m *MemoryRepository) InsertExpense(_ context.Context, e Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[e.ID] = e
	return nil
}

func (m *MemoryRepository) GetExpense(_ context.Context, id string) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return Expense{}, ErrExpenseNotFound
	}
	return e, nil
}

func (m *MemoryRepository) LinkExpense(_ context.Context, id, linkedExpenseID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok {
		return ErrExpenseNotFound
	}
	if e.Status != ExpenseSubmitted {
		return ErrStatus
	}
	e.Status, e.LinkedExpenseID, e.LinkedAt = ExpenseLinked, linkedExpenseID, &at
	m.expenses[id] = e
	return nil
}

func (m *MemoryRepository) InsertTransfer(_ context.Context, kind TransferKind, t Transfer) error {
	if _, err := kind.table(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[kind][t.ID] = t
	return nil
}

func (m *MemoryRepository) GetTransfer(_ context.Context, kind TransferKind, id string) (Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[kind][id]
	if !ok {
		return Transfer{}, ErrTransferNotFound
	}
	return t, nil
}

func (m *MemoryRepository) CompleteTransfer(_ context.Context, kind TransferKind, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transfers[kind][id]
	if !ok {
		return ErrTransferNotFound
	}
	if t.Status != TransferPending {
		return ErrStatus
	}
	t.Status, t.CompletedAt = TransferCompleted, &at
	m.transfers[kind][id] = t
	return nil
}

package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// Memory is an in-process directory, used by tests and local tooling.
type Memory struct {
	mu           sync.RWMutex
	bankAccounts map[string]BankAccount
	companies    map[string]Company
	projects     map[string]Project
}

// NewMemory constructs an empty directory.
func NewMemory() *Memory {
	return &Memory{
		bankAccounts: make(map[string]BankAccount),
		companies:    make(map[string]Company),
		projects:     make(map[string]Project),
	}
}

// AddBankAccount registers a bank account.
func (m *Memory) AddBankAccount(acc BankAccount) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bankAccounts[acc.ID] = acc
	return m
}

// AddCompany registers a company.
func (m *Memory) AddCompany(c Company) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return m
}

// AddProject registers a project.
func (m *Memory) AddProject(p Project) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return m
}

func (m *Memory) GetBankAccount(ctx context.Context, id string) (BankAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.bankAccounts[id]
	if !ok {
		return BankAccount{}, fmt.Errorf("directory: bank account %s: %w", id, shared.ErrNotFound)
	}
	return acc, nil
}

func (m *Memory) GetBankAccounts(ctx context.Context, ids []string) (map[string]BankAccount, error) {
	out := make(map[string]BankAccount, len(ids))
	for _, id := range ids {
		acc, err := m.GetBankAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		out[id] = acc
	}
	return out, nil
}

func (m *Memory) GetCompany(ctx context.Context, id string) (Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return Company{}, fmt.Errorf("directory: company %s: %w", id, shared.ErrNotFound)
	}
	return c, nil
}

func (m *Memory) GetProject(ctx context.Context, id string) (Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return Project{}, fmt.Errorf("directory: project %s: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

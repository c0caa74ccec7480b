package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// BankAccounts resolves bank accounts.
type BankAccounts interface {
	GetBankAccount(ctx context.Context, id string) (BankAccount, error)
	GetBankAccounts(ctx context.Context, ids []string) (map[string]BankAccount, error)
}

// Companies resolves company names.
type Companies interface {
	GetCompany(ctx context.Context, id string) (Company, error)
}

// Projects resolves project names and owners.
type Projects interface {
	GetProject(ctx context.Context, id string) (Project, error)
}

// Repository reads directory tables with pgx.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetBankAccount loads one bank account.
func (r *Repository) GetBankAccount(ctx context.Context, id string) (BankAccount, error) {
	var acc BankAccount
	err := r.db.QueryRow(ctx, `SELECT id, name, gl_account_code, company_id, currency FROM bank_accounts WHERE id=$1`, id).
		Scan(&acc.ID, &acc.Name, &acc.GLAccountCode, &acc.CompanyID, &acc.Currency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BankAccount{}, fmt.Errorf("directory: bank account %s: %w", id, shared.ErrNotFound)
		}
		return BankAccount{}, err
	}
	return acc, nil
}

// GetBankAccounts loads bank accounts keyed by id. Missing ids are reported as ErrNotFound.
func (r *Repository) GetBankAccounts(ctx context.Context, ids []string) (map[string]BankAccount, error) {
	out := make(map[string]BankAccount, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.Query(ctx, `SELECT id, name, gl_account_code, company_id, currency FROM bank_accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var acc BankAccount
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.GLAccountCode, &acc.CompanyID, &acc.Currency); err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("directory: bank account %s: %w", id, shared.ErrNotFound)
		}
	}
	return out, nil
}

// GetCompany loads one company.
func (r *Repository) GetCompany(ctx context.Context, id string) (Company, error) {
	var c Company
	err := r.db.QueryRow(ctx, `SELECT id, name FROM companies WHERE id=$1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, fmt.Errorf("directory: company %s: %w", id, shared.ErrNotFound)
		}
		return Company{}, err
	}
	return c, nil
}

// GetProject loads one project.
func (r *Repository) GetProject(ctx context.Context, id string) (Project, error) {
	var p Project
	err := r.db.QueryRow(ctx, `SELECT id, name, company_id FROM projects WHERE id=$1`, id).Scan(&p.ID, &p.Name, &p.CompanyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, fmt.Errorf("directory: project %s: %w", id, shared.ErrNotFound)
		}
		return Project{}, err
	}
	return p, nil
}

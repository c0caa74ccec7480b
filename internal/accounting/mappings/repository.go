package mappings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

// Repository persists account mappings.
type Repository interface {
	Get(ctx context.Context, companyID string, role Role, ref string) (AccountMapping, error)
	List(ctx context.Context, companyID string) ([]AccountMapping, error)
	Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified company, role and reference.
func (r *repository) Get(ctx context.Context, companyID string, role Role, ref string) (AccountMapping, error) {
	if companyID == "" || role == "" {
		return AccountMapping{}, errors.New("accounting: company and role required")
	}
	var m AccountMapping
	err := r.db.QueryRow(ctx, `SELECT company_id, role, ref, account_code, created_at, updated_at FROM account_mappings WHERE company_id=$1 AND role=$2 AND ref=$3`, companyID, string(role), ref).
		Scan(&m.CompanyID, &m.Role, &m.Ref, &m.AccountCode, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, shared.ErrMappingNotFound
		}
		return AccountMapping{}, err
	}
	return m, nil
}

func (r *repository) List(ctx context.Context, companyID string) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT company_id, role, ref, account_code, created_at, updated_at FROM account_mappings WHERE company_id=$1 ORDER BY role, ref`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.CompanyID, &m.Role, &m.Ref, &m.AccountCode, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, m AccountMapping) (AccountMapping, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO account_mappings (company_id, role, ref, account_code)
VALUES ($1,$2,$3,$4)
ON CONFLICT (company_id, role, ref) DO UPDATE SET account_code=EXCLUDED.account_code, updated_at=NOW()
RETURNING created_at, updated_at`, m.CompanyID, string(m.Role), m.Ref, m.AccountCode).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return AccountMapping{}, err
	}
	return m, nil
}

package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertPurchase(ctx context.Context, purchase Purchase) error
	InsertPurchaseLines(ctx context.Context, purchaseID string, lines []PurchaseLine) error
	// GetLineForUpdate locks the purchase line until the transaction ends.
	GetLineForUpdate(ctx context.Context, lineID string) (PurchaseLine, error)
	AddConsumed(ctx context.Context, lineID string, qty decimal.Decimal) error
	InsertConsumption(ctx context.Context, consumption Consumption) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetPurchase loads a purchase with its lines.
func (r *Repository) GetPurchase(ctx context.Context, id string) (Purchase, error) {
	var p Purchase
	err := r.pool.QueryRow(ctx, `SELECT id, COALESCE(purchase_number, ''), company_id, currency, purchase_date, payment_method,
  COALESCE(bank_account_id, ''), COALESCE(wallet_id, ''), created_by, created_at
FROM inventory_purchases WHERE id = $1`, id).Scan(&p.ID, &p.PurchaseNumber, &p.CompanyID, &p.Currency, &p.PurchaseDate,
		&p.PaymentMethod, &p.BankAccountID, &p.WalletID, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, ErrPurchaseNotFound
	}
	if err != nil {
		return Purchase{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_id, line_no, item_name, quantity, quantity_consumed, unit_cost, COALESCE(project_id, '')
FROM inventory_purchase_lines WHERE purchase_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return Purchase{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l PurchaseLine
		if err := rows.Scan(&l.ID, &l.PurchaseID, &l.LineNo, &l.ItemName, &l.Quantity, &l.QuantityConsumed, &l.UnitCost, &l.ProjectID); err != nil {
			return Purchase{}, err
		}
		l.CompanyID, l.Currency = p.CompanyID, p.Currency
		p.Lines = append(p.Lines, l)
	}
	return p, rows.Err()
}

// ListConsumptions lists consumptions of a purchase line.
func (r *Repository) ListConsumptions(ctx context.Context, lineID string) ([]Consumption, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, purchase_line_id, quantity, unit_cost, amount, COALESCE(project_id, ''),
  COALESCE(expense_account_code, ''), consumed_on, created_by, created_at
FROM inventory_consumptions WHERE purchase_line_id = $1 ORDER BY created_at`, lineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Consumption
	for rows.Next() {
		var c Consumption
		if err := rows.Scan(&c.ID, &c.PurchaseLineID, &c.Quantity, &c.UnitCost, &c.Amount, &c.ProjectID,
			&c.ExpenseAccountCode, &c.ConsumedOn, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertPurchase(ctx context.Context, p Purchase) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_purchases (id, purchase_number, company_id, currency, purchase_date, payment_method, bank_account_id, wallet_id, created_by, created_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`,
		p.ID, p.PurchaseNumber, p.CompanyID, p.Currency, p.PurchaseDate, p.PaymentMethod, p.BankAccountID, p.WalletID, p.CreatedBy, p.CreatedAt)
	return err
}

func (t *txRepo) InsertPurchaseLines(ctx context.Context, purchaseID string, lines []PurchaseLine) error {
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO inventory_purchase_lines (id, purchase_id, line_no, item_name, quantity, quantity_consumed, unit_cost, project_id)
VALUES ($1, $2, $3, $4, $5, 0, $6, NULLIF($7, ''))`, l.ID, purchaseID, l.LineNo, l.ItemName, l.Quantity, l.UnitCost, l.ProjectID)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *txRepo) GetLineForUpdate(ctx context.Context, lineID string) (PurchaseLine, error) {
	var l PurchaseLine
	err := t.tx.QueryRow(ctx, `SELECT l.id, l.purchase_id, l.line_no, l.item_name, l.quantity, l.quantity_consumed, l.unit_cost,
  COALESCE(l.project_id, ''), p.company_id, p.currency
FROM inventory_purchase_lines l JOIN inventory_purchases p ON p.id = l.purchase_id
WHERE l.id = $1 FOR UPDATE OF l`, lineID).Scan(&l.ID, &l.PurchaseID, &l.LineNo, &l.ItemName, &l.Quantity, &l.QuantityConsumed,
		&l.UnitCost, &l.ProjectID, &l.CompanyID, &l.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseLine{}, ErrLineNotFound
	}
	return l, err
}

func (t *txRepo) AddConsumed(ctx context.Context, lineID string, qty decimal.Decimal) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventory_purchase_lines SET quantity_consumed = quantity_consumed + $2 WHERE id = $1`, lineID, qty)
	return err
}

func (t *txRepo) InsertConsumption(ctx context.Context, c Consumption) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO inventory_consumptions (id, purchase_line_id, quantity, unit_cost, amount, project_id, expense_account_code, consumed_on, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)`,
		c.ID, c.PurchaseLineID, c.Quantity, c.UnitCost, c.Amount, c.ProjectID, c.ExpenseAccountCode, c.ConsumedOn, c.CreatedBy, c.CreatedAt)
	return err
}

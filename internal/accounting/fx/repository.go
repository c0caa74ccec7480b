package fx

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store persists snapshots in fx_rate_cache.
type Store interface {
	Get(ctx context.Context, currency string, date time.Time) (Snapshot, error)
	Upsert(ctx context.Context, snap Snapshot) error
	List(ctx context.Context, currency string, from, to time.Time) ([]Snapshot, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the pgx store.
func NewRepository(db *pgxpool.Pool) Store {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, currency string, date time.Time) (Snapshot, error) {
	var (
		snap Snapshot
		rate string
	)
	err := r.db.QueryRow(ctx, `SELECT currency, rate::text, rate_date, source FROM fx_rate_cache WHERE currency=$1 AND rate_date=$2`, currency, Day(date)).
		Scan(&snap.From, &rate, &snap.Date, &snap.Source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrRateNotFound
		}
		return Snapshot{}, err
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Rate = parsed
	snap.To = BaseCurrency
	snap.Date = Day(snap.Date)
	return snap, nil
}

// Upsert writes snap. A manual rate is never replaced by a fetched one.
func (r *repository) Upsert(ctx context.Context, snap Snapshot) error {
	_, err := r.db.Exec(ctx, `INSERT INTO fx_rate_cache (currency, rate_date, rate, source, fetched_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (currency, rate_date) DO UPDATE
SET rate=EXCLUDED.rate, source=EXCLUDED.source, fetched_at=NOW()
WHERE fx_rate_cache.source <> 'manual' OR EXCLUDED.source = 'manual'`, snap.From, Day(snap.Date), snap.Rate.String(), string(snap.Source))
	return err
}

func (r *repository) List(ctx context.Context, currency string, from, to time.Time) ([]Snapshot, error) {
	rows, err := r.db.Query(ctx, `SELECT currency, rate::text, rate_date, source FROM fx_rate_cache
WHERE currency=$1 AND rate_date BETWEEN $2 AND $3 ORDER BY rate_date`, currency, Day(from), Day(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var (
			snap Snapshot
			rate string
		)
		if err := rows.Scan(&snap.From, &rate, &snap.Date, &snap.Source); err != nil {
			return nil, err
		}
		if snap.Rate, err = decimal.NewFromString(rate); err != nil {
			return nil, err
		}
		snap.To = BaseCurrency
		snap.Date = Day(snap.Date)
		out = append(out, snap)
	}
	return out, rows.Err()
}

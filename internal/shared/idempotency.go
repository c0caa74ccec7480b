package shared

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrIdempotencyConflict is returned when a key was already claimed in scope.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore claims (key, scope) pairs in idempotency_keys.
type IdempotencyStore struct {
	db  Execer
	now func() time.Time
}

func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db, now: time.Now}
}

// CheckAndInsert claims key within scope.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, scope string) error {
	if s == nil || s.db == nil {
		return errors.New("idempotency: store not configured")
	}
	if key == "" || scope == "" {
		return errors.New("idempotency: key and scope required")
	}
	tag, err := s.db.Exec(ctx,
		`INSERT INTO idempotency_keys (key, scope, created_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		key, scope, s.now().UTC())
	if err != nil {
		return fmt.Errorf("idempotency: claim %s/%s: %w", scope, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Release drops a claim so the work can be attempted again.
func (s *IdempotencyStore) Release(ctx context.Context, key, scope string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency: key required")
	}
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND scope = $2`, key, scope)
	return err
}

// Cleanup deletes claims older than olderThan and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-olderThan).UTC())
	if err != nil {
		return 0, fmt.Errorf("idempotency: cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}

package shared

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type tagExec struct {
	tag  string
	args []any
}

func (e *tagExec) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	e.args = args
	return pgconn.NewCommandTag(e.tag), nil
}

func TestCheckAndInsertConflictOnZeroRows(t *testing.T) {
	require.NoError(t, NewIdempotencyStore(&tagExec{tag: "INSERT 0 1"}).CheckAndInsert(context.Background(), "k", "charges"))
	err := NewIdempotencyStore(&tagExec{tag: "INSERT 0 0"}).CheckAndInsert(context.Background(), "k", "charges")
	require.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestCheckAndInsertRequiresKeyAndScope(t *testing.T) {
	s := NewIdempotencyStore(&tagExec{tag: "INSERT 0 1"})
	require.Error(t, s.CheckAndInsert(context.Background(), "", "charges"))
	require.Error(t, s.CheckAndInsert(context.Background(), "k", ""))
}

func TestCleanupCutoff(t *testing.T) {
	db := &tagExec{tag: "DELETE 4"}
	s := NewIdempotencyStore(db)
	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.Cleanup(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 4, n)
	require.Equal(t, now.Add(-24*time.Hour), db.args[0])
}

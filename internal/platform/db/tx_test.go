package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	pool *fakePool
}

func (t *fakeTx) Commit(context.Context) error {
	t.pool.commits++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.pool.rollbacks++
	return nil
}

type fakePool struct {
	begins, commits, rollbacks int
}

func (p *fakePool) BeginTx(_ context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	if opts.IsoLevel != pgx.RepeatableRead {
		return nil, errors.New("unexpected isolation level")
	}
	p.begins++
	return &fakeTx{pool: p}, nil
}

func TestRetryable(t *testing.T) {
	require.True(t, Retryable(&pgconn.PgError{Code: "40001"}))
	require.True(t, Retryable(fmt.Errorf("post: %w", &pgconn.PgError{Code: "40P01"})))
	require.False(t, Retryable(&pgconn.PgError{Code: "23505"}))
	require.False(t, Retryable(errors.New("boom")))
	require.False(t, Retryable(nil))
}

func TestWithTxRestartsAfterSerializationFailure(t *testing.T) {
	pool := &fakePool{}
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("void events: %w", &pgconn.PgError{Code: "40001"})
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Equal(t, 2, pool.begins)
	require.Equal(t, 1, pool.commits)
}

func TestWithTxGivesUpAfterAttempts(t *testing.T) {
	pool := &fakePool{}
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.True(t, Retryable(err))
	require.Equal(t, txAttempts, calls)
	require.Zero(t, pool.commits)
}

func TestWithTxDoesNotRetryOtherErrors(t *testing.T) {
	pool := &fakePool{}
	boom := errors.New("unbalanced")
	calls := 0
	err := WithTx(context.Background(), pool, func(pgx.Tx) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, pool.rollbacks)
}

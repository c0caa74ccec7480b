package mappings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/coa"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/directory"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

type memoryRepo struct {
	rows     map[string]AccountMapping
	failures int
	calls    int
}

func key(companyID string, role Role, ref string) string {
	return companyID + "|" + string(role) + "|" + ref
}

func (m *memoryRepo) Get(ctx context.Context, companyID string, role Role, ref string) (AccountMapping, error) {
	m.calls++
	if m.failures > 0 {
		m.failures--
		return AccountMapping{}, errors.New("connection refused")
	}
	row, ok := m.rows[key(companyID, role, ref)]
	if !ok {
		return AccountMapping{}, shared.ErrMappingNotFound
	}
	return row, nil
}

func (m *memoryRepo) List(ctx context.Context, companyID string) ([]AccountMapping, error) {
	return nil, nil
}

func (m *memoryRepo) Upsert(ctx context.Context, row AccountMapping) (AccountMapping, error) {
	m.rows[key(row.CompanyID, row.Role, row.Ref)] = row
	return row, nil
}

func fastRetry() internalShared.RetryPolicy {
	return internalShared.RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func newResolver(repo Repository) *Resolver {
	dir := directory.NewMemory().
		AddBankAccount(directory.BankAccount{ID: "bank-a", GLAccountCode: "1020", CompanyID: "co-a", Currency: "THB"}).
		AddBankAccount(directory.BankAccount{ID: "bank-x", GLAccountCode: "7777", CompanyID: "co-a", Currency: "THB"})
	return NewResolver(repo, dir, coa.Default(), nil).WithRetryPolicy(fastRetry())
}

func TestResolveFallsBackToDefaults(t *testing.T) {
	r := newResolver(nil)
	code, err := r.Resolve(context.Background(), "co-a", RoleInventoryAsset, "")
	require.NoError(t, err)
	require.Equal(t, "1200", code)
}

func TestResolvePrefersSpecificOverride(t *testing.T) {
	repo := &memoryRepo{rows: map[string]AccountMapping{
		key("co-a", RolePettyCashWallet, ""):         {AccountCode: "1010"},
		key("co-a", RolePettyCashWallet, "wallet-1"): {AccountCode: "1000"},
	}}
	r := newResolver(repo)
	code, err := r.Resolve(context.Background(), "co-a", RolePettyCashWallet, "wallet-1")
	require.NoError(t, err)
	require.Equal(t, "1000", code)

	code, err = r.Resolve(context.Background(), "co-a", RolePettyCashWallet, "wallet-2")
	require.NoError(t, err)
	require.Equal(t, "1010", code)
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	repo := &memoryRepo{rows: map[string]AccountMapping{
		key("co-a", RoleCharterRevenue, ""): {AccountCode: "4100"},
	}, failures: 2}
	r := newResolver(repo)
	code, err := r.Resolve(context.Background(), "co-a", RoleCharterRevenue, "")
	require.NoError(t, err)
	require.Equal(t, "4100", code)
	require.Equal(t, 3, repo.calls)
}

func TestResolveGivesUpAfterThreeAttempts(t *testing.T) {
	repo := &memoryRepo{rows: map[string]AccountMapping{}, failures: 5}
	r := newResolver(repo)
	_, err := r.Resolve(context.Background(), "co-a", RoleCharterRevenue, "")
	require.ErrorIs(t, err, shared.ErrStorage)
	require.Equal(t, 3, repo.calls)
}

func TestResolveBankAccount(t *testing.T) {
	r := newResolver(nil)
	code, err := r.Resolve(context.Background(), "co-a", RoleBankAccount, "bank-a")
	require.NoError(t, err)
	require.Equal(t, "1020", code)

	_, err = r.Resolve(context.Background(), "co-b", RoleBankAccount, "bank-a")
	require.ErrorIs(t, err, shared.ErrAccountResolution)

	_, err = r.Resolve(context.Background(), "co-a", RoleBankAccount, "missing")
	require.ErrorIs(t, err, shared.ErrAccountResolution)
}

func TestResolveRejectsCodesOutsideChart(t *testing.T) {
	r := newResolver(nil)
	_, err := r.Resolve(context.Background(), "co-a", RoleBankAccount, "bank-x")
	var resErr *shared.AccountResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, "7777", resErr.Code)
}

func TestResolveUnknownRole(t *testing.T) {
	r := newResolver(nil)
	_, err := r.Resolve(context.Background(), "co-a", Role("mystery"), "")
	require.ErrorIs(t, err, shared.ErrAccountResolution)
}

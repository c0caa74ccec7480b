package mappings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/directory"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// Chart validates account codes.
type Chart interface {
	Exists(code string) bool
}

// Resolver maps semantic roles to chart-of-accounts codes.
type Resolver struct {
	repo   Repository
	banks  directory.BankAccounts
	chart  Chart
	retry  internalShared.RetryPolicy
	logger *slog.Logger
}

// NewResolver wires the resolver. repo may be nil, in which case only the
// built-in defaults apply.
func NewResolver(repo Repository, banks directory.BankAccounts, chart Chart, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		repo:   repo,
		banks:  banks,
		chart:  chart,
		retry:  internalShared.DefaultRetryPolicy(),
		logger: logger.With(slog.String("component", "account_resolver")),
	}
}

// WithRetryPolicy overrides the lookup retry policy.
func (r *Resolver) WithRetryPolicy(policy internalShared.RetryPolicy) *Resolver {
	r.retry = policy
	return r
}

// Resolve returns the GL code for role within companyID. ref identifies the
// bank account or wallet for roles that need one.
func (r *Resolver) Resolve(ctx context.Context, companyID string, role Role, ref string) (string, error) {
	if !role.Valid() {
		return "", &shared.AccountResolutionError{CompanyID: companyID, Role: string(role), Ref: ref, Err: errors.New("unknown role")}
	}
	var (
		code string
		err  error
	)
	if role == RoleBankAccount {
		code, err = r.bankCode(ctx, companyID, ref)
	} else {
		code, err = r.mappedCode(ctx, companyID, role, ref)
	}
	if err != nil {
		return "", err
	}
	if !r.chart.Exists(code) {
		return "", &shared.AccountResolutionError{CompanyID: companyID, Role: string(role), Ref: ref, Code: code}
	}
	return code, nil
}

// BankAccount loads a bank account with retry.
func (r *Resolver) BankAccount(ctx context.Context, id string) (directory.BankAccount, error) {
	if strings.TrimSpace(id) == "" {
		return directory.BankAccount{}, &shared.AccountResolutionError{Role: string(RoleBankAccount), Err: errors.New("bank account id required")}
	}
	acc, err := internalShared.Retry(ctx, r.retry, func(ctx context.Context) (directory.BankAccount, error) {
		acc, err := r.banks.GetBankAccount(ctx, id)
		if errors.Is(err, internalShared.ErrNotFound) {
			return acc, internalShared.Permanent(err)
		}
		return acc, err
	})
	if err != nil {
		if errors.Is(err, internalShared.ErrNotFound) {
			return directory.BankAccount{}, &shared.AccountResolutionError{Role: string(RoleBankAccount), Ref: id, Err: err}
		}
		return directory.BankAccount{}, shared.Storage("load bank account", err)
	}
	return acc, nil
}

// ValidateCode checks an explicit account code against the chart.
func (r *Resolver) ValidateCode(code string) error {
	if !r.chart.Exists(code) {
		return &shared.AccountResolutionError{Code: code}
	}
	return nil
}

func (r *Resolver) bankCode(ctx context.Context, companyID, bankAccountID string) (string, error) {
	acc, err := r.BankAccount(ctx, bankAccountID)
	if err != nil {
		return "", err
	}
	if acc.CompanyID != companyID {
		return "", &shared.AccountResolutionError{
			CompanyID: companyID,
			Role:      string(RoleBankAccount),
			Ref:       bankAccountID,
			Err:       fmt.Errorf("bank account belongs to company %s", acc.CompanyID),
		}
	}
	if acc.GLAccountCode == "" {
		return "", &shared.AccountResolutionError{CompanyID: companyID, Role: string(RoleBankAccount), Ref: bankAccountID, Err: errors.New("bank account has no GL code")}
	}
	return acc.GLAccountCode, nil
}

func (r *Resolver) mappedCode(ctx context.Context, companyID string, role Role, ref string) (string, error) {
	if r.repo != nil && companyID != "" {
		refs := []string{""}
		if ref != "" {
			refs = []string{ref, ""}
		}
		for _, candidate := range refs {
			mapping, err := internalShared.Retry(ctx, r.retry, func(ctx context.Context) (AccountMapping, error) {
				m, err := r.repo.Get(ctx, companyID, role, candidate)
				if errors.Is(err, shared.ErrMappingNotFound) {
					return m, internalShared.Permanent(err)
				}
				return m, err
			})
			if err == nil {
				return mapping.AccountCode, nil
			}
			if !errors.Is(err, shared.ErrMappingNotFound) {
				r.logger.Warn("account mapping lookup failed", slog.String("company_id", companyID), slog.String("role", string(role)), slog.Any("error", err))
				return "", shared.Storage("load account mapping", err)
			}
		}
	}
	code, ok := DefaultCode(role)
	if !ok {
		return "", &shared.AccountResolutionError{CompanyID: companyID, Role: string(role), Ref: ref, Err: shared.ErrMappingNotFound}
	}
	return code, nil
}

package mappings

import "time"

// Role is a semantic posting target resolved to a GL code per company.
type Role string

const (
	RoleBankAccount            Role = "bank_account"
	RoleCash                   Role = "cash"
	RolePettyCashWallet        Role = "petty_cash_wallet"
	RoleInventoryAsset         Role = "inventory_asset"
	RoleAccountsPayable        Role = "accounts_payable"
	RoleAccountsReceivable     Role = "accounts_receivable"
	RoleVATPayable             Role = "vat_payable"
	RoleVATInput               Role = "vat_input"
	RoleIntercompanyReceivable Role = "intercompany_receivable"
	RoleIntercompanyPayable    Role = "intercompany_payable"
	RoleCharterRevenue         Role = "charter_revenue"
	RoleDeferredRevenue        Role = "deferred_revenue"
	RoleDefaultExpense         Role = "default_expense"
)

// defaultCodes apply when a company has no override.
var defaultCodes = map[Role]string{
	RoleCash:                   "1000",
	RolePettyCashWallet:        "1010",
	RoleAccountsReceivable:     "1100",
	RoleVATInput:               "1150",
	RoleInventoryAsset:         "1200",
	RoleIntercompanyReceivable: "1300",
	RoleAccountsPayable:        "2000",
	RoleVATPayable:             "2100",
	RoleIntercompanyPayable:    "2200",
	RoleDeferredRevenue:        "2300",
	RoleCharterRevenue:         "4000",
	RoleDefaultExpense:         "6900",
}

// DefaultCode returns the built-in GL code for role.
func DefaultCode(role Role) (string, bool) {
	code, ok := defaultCodes[role]
	return code, ok
}

// Valid reports whether role is known.
func (r Role) Valid() bool {
	if r == RoleBankAccount {
		return true
	}
	_, ok := defaultCodes[r]
	return ok
}

// AccountMapping overrides the GL code of a role for a company. An empty Ref
// applies to every reference of the role.
type AccountMapping struct {
	CompanyID   string    `json:"company_id" validate:"required"`
	Role        Role      `json:"role" validate:"required"`
	Ref         string    `json:"ref"`
	AccountCode string    `json:"account_code" validate:"required"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

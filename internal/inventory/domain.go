// Package inventory tracks consumables bought for the fleet and their
// consumption against projects.
package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

const (
	SourcePurchase    = "inventory_purchase"
	SourceConsumption = "inventory_consumption"
)

// ErrInsufficientQuantity is returned when a consumption exceeds what is left
// on the purchase line.
var ErrInsufficientQuantity = fmt.Errorf("inventory: insufficient quantity: %w", internalShared.ErrInvalidInput)

// ErrPurchaseNotFound indicates missing purchase.
var ErrPurchaseNotFound = fmt.Errorf("inventory: purchase %w", internalShared.ErrNotFound)

// ErrLineNotFound indicates missing purchase line.
var ErrLineNotFound = fmt.Errorf("inventory: purchase line %w", internalShared.ErrNotFound)

// Purchase is the header of an inventory purchase.
type Purchase struct {
	ID             string               `json:"id"`
	PurchaseNumber string               `json:"purchase_number,omitempty"`
	CompanyID      string               `json:"company_id"`
	Currency       string               `json:"currency"`
	PurchaseDate   time.Time            `json:"purchase_date"`
	PaymentMethod  events.PaymentMethod `json:"payment_method"`
	BankAccountID  string               `json:"bank_account_id,omitempty"`
	WalletID       string               `json:"wallet_id,omitempty"`
	CreatedBy      string               `json:"created_by"`
	CreatedAt      time.Time            `json:"created_at"`
	Lines          []PurchaseLine       `json:"lines"`
}

// PurchaseLine is one item lot. CompanyID and Currency are copied from the
// purchase when a line is loaded on its own.
type PurchaseLine struct {
	ID               string          `json:"id"`
	PurchaseID       string          `json:"purchase_id"`
	LineNo           int             `json:"line_no"`
	ItemName         string          `json:"item_name"`
	Quantity         decimal.Decimal `json:"quantity"`
	QuantityConsumed decimal.Decimal `json:"quantity_consumed"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ProjectID        string          `json:"project_id,omitempty"`
	CompanyID        string          `json:"-"`
	Currency         string          `json:"-"`
}

// Remaining is the quantity not yet consumed.
func (l PurchaseLine) Remaining() decimal.Decimal {
	return l.Quantity.Sub(l.QuantityConsumed)
}

// Consumption records stock taken from a purchase line.
type Consumption struct {
	ID                 string          `json:"id"`
	PurchaseLineID     string          `json:"purchase_line_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	Amount             decimal.Decimal `json:"amount"`
	ProjectID          string          `json:"project_id,omitempty"`
	ExpenseAccountCode string          `json:"expense_account_code,omitempty"`
	ConsumedOn         time.Time       `json:"consumed_on"`
	CreatedBy          string          `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
}

// PurchaseLineInput describes one item bought.
type PurchaseLineInput struct {
	ItemName  string          `json:"item_name" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"gt=0"`
	ProjectID string          `json:"project_id"`
}

// PurchaseInput describes request to record a purchase.
type PurchaseInput struct {
	PurchaseNumber string               `json:"purchase_number"`
	CompanyID      string               `json:"company_id" validate:"required"`
	Currency       string               `json:"currency" validate:"required,len=3"`
	PurchaseDate   time.Time            `json:"purchase_date" validate:"required"`
	PaymentMethod  events.PaymentMethod `json:"payment_method" validate:"oneof=bank_transfer cash petty_cash"`
	BankAccountID  string               `json:"bank_account_id" validate:"required_if=PaymentMethod bank_transfer"`
	WalletID       string               `json:"wallet_id" validate:"required_if=PaymentMethod petty_cash"`
	Lines          []PurchaseLineInput  `json:"lines" validate:"required,min=1,dive"`
}

// ConsumeInput describes stock taken from a purchase line.
type ConsumeInput struct {
	LineID             string          `json:"line_id" validate:"required"`
	Quantity           decimal.Decimal `json:"quantity" validate:"gt=0"`
	ProjectID          string          `json:"project_id"`
	ExpenseAccountCode string          `json:"expense_account_code"`
	ConsumedOn         time.Time       `json:"consumed_on" validate:"required"`
}

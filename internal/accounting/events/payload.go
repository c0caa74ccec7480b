package events

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

// EventType discriminates accounting events and their payloads.
type EventType string

const (
	EventReceiptReceived             EventType = "RECEIPT_RECEIVED"
	EventReceiptReceivedIntercompany EventType = "RECEIPT_RECEIVED_INTERCOMPANY"
	EventExpenseApproved             EventType = "EXPENSE_APPROVED"
	EventInventoryPurchaseRecorded   EventType = "INVENTORY_PURCHASE_RECORDED"
	EventInventoryConsumed           EventType = "INVENTORY_CONSUMED"
	EventPettyCashExpenseCreated     EventType = "PETTYCASH_EXPENSE_CREATED"
	EventPettyCashTopUpCompleted     EventType = "PETTYCASH_TOPUP_COMPLETED"
	EventPettyCashReimbursementPaid  EventType = "PETTYCASH_REIMBURSEMENT_PAID"
)

// Types lists every event type in a stable order.
func Types() []EventType {
	return []EventType{
		EventReceiptReceived,
		EventReceiptReceivedIntercompany,
		EventExpenseApproved,
		EventInventoryPurchaseRecorded,
		EventInventoryConsumed,
		EventPettyCashExpenseCreated,
		EventPettyCashTopUpCompleted,
		EventPettyCashReimbursementPaid,
	}
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

// DedupKey is the type under which at most one event per source document may
// be active. Both receipt events share a key so a receipt posts through one
// of them only.
func (t EventType) DedupKey() EventType {
	if t == EventReceiptReceivedIntercompany {
		return EventReceiptReceived
	}
	return t
}

// PaymentMethod says how money moved for a payment line.
type PaymentMethod string

const (
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCash         PaymentMethod = "cash"
	PaymentPettyCash    PaymentMethod = "petty_cash"
	PaymentPayable      PaymentMethod = "payable"
)

// Payload is the typed body of an event. Every implementation is a value type
// listed in DecodePayload.
type Payload interface {
	EventType() EventType
	// Companies returns the companies whose books the event touches.
	Companies() []string
}

// ReceiptLine is a revenue line of a customer receipt, net of VAT.
type ReceiptLine struct {
	Description        string          `json:"description" validate:"required"`
	ProjectID          string          `json:"project_id,omitempty"`
	Amount             decimal.Decimal `json:"amount" validate:"gt=0"`
	RevenueAccountCode string          `json:"revenue_account_code,omitempty"`
}

// ReceiptPayment is one payment received against a receipt.
type ReceiptPayment struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Method        PaymentMethod   `json:"method" validate:"oneof=bank_transfer cash"`
	BankAccountID string          `json:"bank_account_id,omitempty" validate:"required_if=Method bank_transfer"`
	PaidOn        string          `json:"paid_on,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type ReceiptReceived struct {
	ReceiptID       string           `json:"receipt_id" validate:"required"`
	ReceiptNumber   string           `json:"receipt_number,omitempty"`
	CompanyID       string           `json:"company_id" validate:"required"`
	CustomerName    string           `json:"customer_name,omitempty"`
	Currency        string           `json:"currency" validate:"required,len=3"`
	Lines           []ReceiptLine    `json:"lines" validate:"required,min=1,dive"`
	Payments        []ReceiptPayment `json:"payments" validate:"required,min=1,dive"`
	VATAmount       decimal.Decimal  `json:"vat_amount" validate:"gte=0"`
	DeferredRevenue bool             `json:"deferred_revenue,omitempty"`
}

func (ReceiptReceived) EventType() EventType { return EventReceiptReceived }
func (p ReceiptReceived) Companies() []string { return []string{p.CompanyID} }

// Subtotal sums the receipt lines.
func (p ReceiptReceived) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.Amount)
	}
	return total
}

// Projects returns the distinct projects on the receipt lines in order.
func (p ReceiptReceived) Projects() []string {
	seen := map[string]bool{}
	var out []string
	for _, line := range p.Lines {
		if line.ProjectID == "" || seen[line.ProjectID] {
			continue
		}
		seen[line.ProjectID] = true
		out = append(out, line.ProjectID)
	}
	return out
}

// ReceiptReceivedIntercompany is a receipt for a charter owned by one company
// whose money landed in another company's bank account.
type ReceiptReceivedIntercompany struct {
	Receipt            ReceiptReceived `json:"receipt" validate:"required"`
	CharterCompanyID   string          `json:"charter_company_id" validate:"required,eqcsfield=Receipt.CompanyID"`
	ReceivingCompanyID string          `json:"receiving_company_id" validate:"required,nefield=CharterCompanyID"`
	DueFromAccountCode string          `json:"due_from_account_code" validate:"required"`
	DueToAccountCode   string          `json:"due_to_account_code" validate:"required"`
	DeferredRevenue    bool            `json:"deferred_revenue,omitempty"`
}

func (ReceiptReceivedIntercompany) EventType() EventType { return EventReceiptReceivedIntercompany }
func (p ReceiptReceivedIntercompany) Companies() []string {
	return []string{p.CharterCompanyID, p.ReceivingCompanyID}
}

type ExpenseLine struct {
	Description string          `json:"description" validate:"required"`
	AccountCode string          `json:"account_code,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
}

// ExpenseApproved carries net expense lines, input VAT and how the expense is settled.
type ExpenseApproved struct {
	ExpenseID     string          `json:"expense_id" validate:"required"`
	ExpenseNumber string          `json:"expense_number,omitempty"`
	CompanyID     string          `json:"company_id" validate:"required"`
	VendorName    string          `json:"vendor_name,omitempty"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	Lines         []ExpenseLine   `json:"lines" validate:"required,min=1,dive"`
	VATAmount     decimal.Decimal `json:"vat_amount" validate:"gte=0"`
	PaymentMethod PaymentMethod   `json:"payment_method" validate:"oneof=payable bank_transfer cash petty_cash"`
	BankAccountID string          `json:"bank_account_id,omitempty" validate:"required_if=PaymentMethod bank_transfer"`
	WalletID      string          `json:"wallet_id,omitempty" validate:"required_if=PaymentMethod petty_cash"`
}

func (ExpenseApproved) EventType() EventType { return EventExpenseApproved }
func (p ExpenseApproved) Companies() []string { return []string{p.CompanyID} }

// Subtotal sums the expense lines.
func (p ExpenseApproved) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.Amount)
	}
	return total
}

type InventoryPurchaseLine struct {
	LineID    string          `json:"line_id" validate:"required"`
	ItemName  string          `json:"item_name" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"gt=0"`
	ProjectID string          `json:"project_id,omitempty"`
}

// Amount is quantity times unit cost, rounded to cents.
func (l InventoryPurchaseLine) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost).Round(2)
}

type InventoryPurchaseRecorded struct {
	PurchaseID     string                  `json:"purchase_id" validate:"required"`
	PurchaseNumber string                  `json:"purchase_number,omitempty"`
	CompanyID      string                  `json:"company_id" validate:"required"`
	Currency       string                  `json:"currency" validate:"required,len=3"`
	Lines          []InventoryPurchaseLine `json:"lines" validate:"required,min=1,dive"`
	PaymentMethod  PaymentMethod           `json:"payment_method" validate:"oneof=bank_transfer cash petty_cash"`
	BankAccountID  string                  `json:"bank_account_id,omitempty" validate:"required_if=PaymentMethod bank_transfer"`
	WalletID       string                  `json:"wallet_id,omitempty" validate:"required_if=PaymentMethod petty_cash"`
}

func (InventoryPurchaseRecorded) EventType() EventType { return EventInventoryPurchaseRecorded }
func (p InventoryPurchaseRecorded) Companies() []string { return []string{p.CompanyID} }

// Total sums the purchase lines.
func (p InventoryPurchaseRecorded) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range p.Lines {
		total = total.Add(line.Amount())
	}
	return total
}

type InventoryConsumed struct {
	ConsumptionID      string          `json:"consumption_id" validate:"required"`
	PurchaseLineID     string          `json:"purchase_line_id" validate:"required"`
	CompanyID          string          `json:"company_id" validate:"required"`
	Currency           string          `json:"currency" validate:"required,len=3"`
	ItemName           string          `json:"item_name,omitempty"`
	Quantity           decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost           decimal.Decimal `json:"unit_cost" validate:"gt=0"`
	ProjectID          string          `json:"project_id,omitempty"`
	ExpenseAccountCode string          `json:"expense_account_code,omitempty"`
}

func (InventoryConsumed) EventType() EventType { return EventInventoryConsumed }
func (p InventoryConsumed) Companies() []string { return []string{p.CompanyID} }

// Amount is quantity times unit cost, rounded to cents.
func (p InventoryConsumed) Amount() decimal.Decimal {
	return p.Quantity.Mul(p.UnitCost).Round(2)
}

type PettyCashExpenseCreated struct {
	ExpenseID   string          `json:"expense_id" validate:"required"`
	WalletID    string          `json:"wallet_id" validate:"required"`
	CompanyID   string          `json:"company_id" validate:"required"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description,omitempty"`
	ProjectID   string          `json:"project_id,omitempty"`
}

func (PettyCashExpenseCreated) EventType() EventType { return EventPettyCashExpenseCreated }
func (p PettyCashExpenseCreated) Companies() []string { return []string{p.CompanyID} }

type PettyCashTopUpCompleted struct {
	TopUpID       string          `json:"topup_id" validate:"required"`
	WalletID      string          `json:"wallet_id" validate:"required"`
	CompanyID     string          `json:"company_id" validate:"required"`
	Currency      string          `json:"currency" validate:"required,len=3"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	BankAccountID string          `json:"bank_account_id" validate:"required"`
}

func (PettyCashTopUpCompleted) EventType() EventType { return EventPettyCashTopUpCompleted }
func (p PettyCashTopUpCompleted) Companies() []string { return []string{p.CompanyID} }

type PettyCashReimbursementPaid struct {
	ReimbursementID string          `json:"reimbursement_id" validate:"required"`
	WalletID        string          `json:"wallet_id" validate:"required"`
	CompanyID       string          `json:"company_id" validate:"required"`
	Currency        string          `json:"currency" validate:"required,len=3"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	BankAccountID   string          `json:"bank_account_id" validate:"required"`
}

func (PettyCashReimbursementPaid) EventType() EventType { return EventPettyCashReimbursementPaid }
func (p PettyCashReimbursementPaid) Companies() []string { return []string{p.CompanyID} }

// DecodePayload parses raw JSON into the payload type of t. Unknown fields are rejected.
func DecodePayload(t EventType, raw []byte) (Payload, error) {
	switch t {
	case EventReceiptReceived:
		return decodeInto[ReceiptReceived](raw)
	case EventReceiptReceivedIntercompany:
		return decodeInto[ReceiptReceivedIntercompany](raw)
	case EventExpenseApproved:
		return decodeInto[ExpenseApproved](raw)
	case EventInventoryPurchaseRecorded:
		return decodeInto[InventoryPurchaseRecorded](raw)
	case EventInventoryConsumed:
		return decodeInto[InventoryConsumed](raw)
	case EventPettyCashExpenseCreated:
		return decodeInto[PettyCashExpenseCreated](raw)
	case EventPettyCashTopUpCompleted:
		return decodeInto[PettyCashTopUpCompleted](raw)
	case EventPettyCashReimbursementPaid:
		return decodeInto[PettyCashReimbursementPaid](raw)
	}
	return nil, fmt.Errorf("%w: unknown event type %q", shared.ErrInvalidPayload, t)
}

func decodeInto[T Payload](raw []byte) (Payload, error) {
	var payload T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", shared.ErrInvalidPayload, payload.EventType(), err)
	}
	return payload, nil
}

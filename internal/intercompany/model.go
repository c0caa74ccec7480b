// Package intercompany detects charter receipts collected by another group
// company and tracks the resulting intercompany charges. Charge records are
// informational and never posted to the ledger.
package intercompany

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrBatchSuperseded reports a charge batch whose receipt event was voided
// or replaced before the batch ran.
var ErrBatchSuperseded = errors.New("intercompany: charge batch superseded")

// Decision is the outcome of Detect for one receipt.
type Decision struct {
	Intercompany       bool            `json:"intercompany"`
	CharterCompanyID   string          `json:"charter_company_id"`
	ReceivingCompanyID string          `json:"receiving_company_id,omitempty"`
	// ReceivedAmount is what the receiving company collected on the charter
	// company's behalf.
	ReceivedAmount decimal.Decimal `json:"received_amount"`
}

// ChargeRecord tracks money one company owes another for a project.
type ChargeRecord struct {
	ID              uuid.UUID       `json:"id"`
	ReceiptID       string          `json:"receipt_id"`
	EventID         uuid.UUID       `json:"event_id"`
	PayingCompanyID string          `json:"paying_company_id"`
	OwedToCompanyID string          `json:"owed_to_company_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	ProjectID       string          `json:"project_id"`
	CharterDate     time.Time       `json:"charter_date"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Allocation is the share of the collected amount attributed to a project.
type Allocation struct {
	ProjectID string          `json:"project_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// ChargeBatch carries everything needed to record the charges of one receipt.
// It is serialisable so it can travel through a task queue.
type ChargeBatch struct {
	ReceiptID       string       `json:"receipt_id"`
	// EventID is the posted receipt event the batch belongs to.
	EventID         string       `json:"event_id,omitempty"`
	PayingCompanyID string       `json:"paying_company_id"`
	OwedToCompanyID string       `json:"owed_to_company_id"`
	Currency        string       `json:"currency"`
	CharterDate     time.Time    `json:"charter_date"`
	Allocations     []Allocation `json:"allocations"`
}

var chargeNamespace = uuid.MustParse("6f1c3c1e-8a52-4bde-9c0f-2f7f1b0a9d41")

// ChargeID derives a stable id so re-recording a batch is idempotent.
func ChargeID(receiptID, projectID string) uuid.UUID {
	return uuid.NewSHA1(chargeNamespace, []byte(receiptID+"|"+projectID))
}

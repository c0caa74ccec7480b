package intercompany_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/ledgertest"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
)

var amount = ledgertest.Amount

func newGenerator(t *testing.T) (*intercompany.Generator, *intercompany.MemoryRepository) {
	t.Helper()
	h := ledgertest.New(t)
	repo := intercompany.NewMemoryRepository()
	gen := intercompany.NewGenerator(h.Accounts, repo, h.Logger).
		WithNow(func() time.Time { return time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC) })
	return gen, repo
}

func charterReceipt(payments ...events.ReceiptPayment) events.ReceiptReceived {
	return events.ReceiptReceived{
		ReceiptID: "RE-2024-010",
		CompanyID: ledgertest.CompanyA,
		Currency:  "THB",
		Lines: []events.ReceiptLine{
			{Description: "Charter", ProjectID: ledgertest.ProjectA, Amount: amount("10000")},
		},
		Payments: payments,
	}
}

func bank(id, value string) events.ReceiptPayment {
	return events.ReceiptPayment{Amount: amount(value), Method: events.PaymentBankTransfer, BankAccountID: id}
}

func TestDetectSameCompany(t *testing.T) {
	gen, _ := newGenerator(t)
	decision, err := gen.Detect(context.Background(), charterReceipt(bank(ledgertest.BankA, "10000")))
	require.NoError(t, err)
	require.False(t, decision.Intercompany)
	require.True(t, decision.ReceivedAmount.IsZero())
}

func TestDetectForeignBank(t *testing.T) {
	gen, _ := newGenerator(t)
	receipt := charterReceipt(
		bank(ledgertest.BankB, "7000"),
		events.ReceiptPayment{Amount: amount("3000"), Method: events.PaymentCash},
	)
	decision, err := gen.Detect(context.Background(), receipt)
	require.NoError(t, err)
	require.True(t, decision.Intercompany)
	require.Equal(t, ledgertest.CompanyA, decision.CharterCompanyID)
	require.Equal(t, ledgertest.CompanyB, decision.ReceivingCompanyID)
	require.True(t, decision.ReceivedAmount.Equal(amount("7000")))
}

func TestDetectUnknownBank(t *testing.T) {
	gen, _ := newGenerator(t)
	_, err := gen.Detect(context.Background(), charterReceipt(bank("bank-missing", "10000")))
	require.ErrorIs(t, err, shared.ErrAccountResolution)
}

func TestBuildEventDataResolvesClearingAccounts(t *testing.T) {
	gen, _ := newGenerator(t)
	receipt := charterReceipt(bank(ledgertest.BankB, "10000"))
	receipt.DeferredRevenue = true
	decision, err := gen.Detect(context.Background(), receipt)
	require.NoError(t, err)

	data, err := gen.BuildEventData(context.Background(), receipt, decision)
	require.NoError(t, err)
	require.Equal(t, "1300", data.DueFromAccountCode)
	require.Equal(t, "2200", data.DueToAccountCode)
	require.True(t, data.DeferredRevenue)
	require.ElementsMatch(t, []string{ledgertest.CompanyA, ledgertest.CompanyB}, data.Companies())

	_, err = gen.BuildEventData(context.Background(), receipt, intercompany.Decision{CharterCompanyID: ledgertest.CompanyA})
	require.ErrorIs(t, err, shared.ErrInvalidPayload)
}

func TestNewChargeBatchSplitsByProject(t *testing.T) {
	receipt := charterReceipt(bank(ledgertest.BankB, "1000"))
	receipt.Lines = []events.ReceiptLine{
		{Description: "Amaya", ProjectID: ledgertest.ProjectA, Amount: amount("1")},
		{Description: "Lumi", ProjectID: ledgertest.ProjectB, Amount: amount("2")},
	}
	decision := intercompany.Decision{
		Intercompany:       true,
		CharterCompanyID:   ledgertest.CompanyA,
		ReceivingCompanyID: ledgertest.CompanyB,
		ReceivedAmount:     amount("1000"),
	}
	batch := intercompany.NewChargeBatch(receipt, decision, ledgertest.Date)
	require.Equal(t, ledgertest.CompanyB, batch.PayingCompanyID)
	require.Equal(t, ledgertest.CompanyA, batch.OwedToCompanyID)
	require.Len(t, batch.Allocations, 2)
	require.Equal(t, ledgertest.ProjectA, batch.Allocations[0].ProjectID)
	require.True(t, batch.Allocations[0].Amount.Equal(amount("333.33")), batch.Allocations[0].Amount.String())
	require.True(t, batch.Allocations[1].Amount.Equal(amount("666.67")), batch.Allocations[1].Amount.String())
}

func TestRecordChargesIsIdempotent(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()
	receipt := charterReceipt(bank(ledgertest.BankB, "10000"))
	decision, err := gen.Detect(ctx, receipt)
	require.NoError(t, err)
	batch := intercompany.NewChargeBatch(receipt, decision, ledgertest.Date)
	batch.EventID = uuid.NewString()

	records, err := gen.RecordCharges(ctx, batch)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.True(t, records[0].Amount.Equal(amount("10000")))
	require.Equal(t, intercompany.ChargeID("RE-2024-010", ledgertest.ProjectA), records[0].ID)

	_, err = gen.RecordCharges(ctx, batch)
	require.NoError(t, err)
	stored, err := repo.ListByReceipt(ctx, "RE-2024-010")
	require.NoError(t, err)
	require.Len(t, stored, 1)

	deleted, err := gen.DeleteCharges(ctx, "RE-2024-010")
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
}

func TestRecordChargesRejectsIncompleteBatch(t *testing.T) {
	gen, _ := newGenerator(t)
	_, err := gen.RecordCharges(context.Background(), intercompany.ChargeBatch{ReceiptID: "RE-1"})
	require.ErrorIs(t, err, shared.ErrInvalidPayload)
}

func chargeBatch(eventID uuid.UUID, value string) intercompany.ChargeBatch {
	return intercompany.ChargeBatch{
		ReceiptID:       "RE-2024-010",
		EventID:         eventID.String(),
		PayingCompanyID: ledgertest.CompanyB,
		OwedToCompanyID: ledgertest.CompanyA,
		Currency:        "THB",
		CharterDate:     ledgertest.Date,
		Allocations:     []intercompany.Allocation{{ProjectID: ledgertest.ProjectA, Amount: amount(value)}},
	}
}

func TestRecordChargesRequiresEventID(t *testing.T) {
	gen, _ := newGenerator(t)
	batch := chargeBatch(uuid.New(), "100")
	batch.EventID = ""
	_, err := gen.RecordCharges(context.Background(), batch)
	require.ErrorIs(t, err, shared.ErrInvalidPayload)
}

func TestRecordChargesNewerEventReplacesOlder(t *testing.T) {
	gen, repo := newGenerator(t)
	ctx := context.Background()
	older, newer := uuid.New(), uuid.New()

	_, err := gen.RecordCharges(ctx, chargeBatch(older, "10000"))
	require.NoError(t, err)
	_, err = gen.RecordCharges(ctx, chargeBatch(newer, "8000"))
	require.NoError(t, err)

	stored, err := repo.ListByReceipt(ctx, "RE-2024-010")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, newer, stored[0].EventID)
	require.True(t, stored[0].Amount.Equal(amount("8000")))
}

func TestRecordChargesSkipsVoidedEvent(t *testing.T) {
	h := ledgertest.New(t)
	ctx := context.Background()
	eventID := h.IntercompanyReceiptEvent(t, "RE-2024-010")
	_, err := h.Store.VoidBySourceDocument(ctx, "receipt", "RE-2024-010", "replaced")
	require.NoError(t, err)

	_, err = h.Generator.RecordCharges(ctx, chargeBatch(eventID, "10000"))
	require.ErrorIs(t, err, intercompany.ErrBatchSuperseded)
	require.NoError(t, h.Generator.Dispatch(ctx, chargeBatch(eventID, "10000")))

	stored, err := h.Charges.ListByReceipt(ctx, "RE-2024-010")
	require.NoError(t, err)
	require.Empty(t, stored)
}

func TestRecordChargesUnknownEventIsSuperseded(t *testing.T) {
	h := ledgertest.New(t)
	_, err := h.Generator.RecordCharges(context.Background(), chargeBatch(uuid.New(), "10000"))
	require.ErrorIs(t, err, intercompany.ErrBatchSuperseded)
}

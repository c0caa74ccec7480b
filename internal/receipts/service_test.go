package receipts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/ledgertest"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/receipts"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/sidechannel"
)

var amount = ledgertest.Amount

type failingSink struct{}

func (failingSink) Dispatch(context.Context, intercompany.ChargeBatch) error {
	return errors.New("charge table locked")
}

type capturingSink struct {
	mu      sync.Mutex
	batches []intercompany.ChargeBatch
}

func (c *capturingSink) Dispatch(_ context.Context, batch intercompany.ChargeBatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
	return nil
}

func newService(t *testing.T, sink receipts.ChargeSink) (*receipts.Service, *ledgertest.Harness) {
	t.Helper()
	h := ledgertest.New(t)
	if sink == nil {
		sink = h.Generator
	}
	queue := sidechannel.NewQueue(2, h.Logger)
	t.Cleanup(func() { _ = queue.Close(context.Background()) })
	return receipts.NewService(h.Store, h.Generator, sink, queue, h.Logger), h
}

func charter(bank, paid string) receipts.ReceiptInput {
	return receipts.ReceiptInput{
		ReceivedOn: ledgertest.Date,
		Receipt: events.ReceiptReceived{
			ReceiptID:    "RE-2024-100",
			CompanyID:    ledgertest.CompanyA,
			CustomerName: "A. Jensen",
			Currency:     "THB",
			Lines: []events.ReceiptLine{
				{Description: "Charter 3-5 June", ProjectID: ledgertest.ProjectA, Amount: amount("10000")},
			},
			Payments: []events.ReceiptPayment{
				{Amount: amount(paid), Method: events.PaymentBankTransfer, BankAccountID: bank},
			},
		},
	}
}

func waitCharges(t *testing.T, outcome receipts.Outcome) error {
	t.Helper()
	require.NotNil(t, outcome.Charges)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return outcome.Charges.Wait(ctx)
}

func TestReceiveSameCompany(t *testing.T) {
	svc, h := newService(t, nil)
	outcome, err := svc.Receive(context.Background(), charter(ledgertest.BankA, "10000"), "accountant-1")
	require.NoError(t, err)
	require.True(t, outcome.RecordSaved)
	require.True(t, outcome.Posting.Success, outcome.Posting.Error)
	require.False(t, outcome.Intercompany.Intercompany)
	require.Nil(t, outcome.Charges)

	entries := h.JournalsFor(receipts.SourceType, "RE-2024-100")
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Lines, 2)
	require.True(t, ledgertest.LineAmount(entries[0], "1020").Equal(amount("10000")))
	require.True(t, ledgertest.LineAmount(entries[0], "4000").Equal(amount("-10000")))
}

func TestReceiveIntercompanyRecordsOneCharge(t *testing.T) {
	svc, h := newService(t, nil)
	ctx := context.Background()
	outcome, err := svc.Receive(ctx, charter(ledgertest.BankB, "10000"), "accountant-1")
	require.NoError(t, err)
	require.True(t, outcome.Posting.Success, outcome.Posting.Error)
	require.True(t, outcome.Intercompany.Intercompany)
	require.Len(t, outcome.Posting.JournalEntryIDs, 2)

	byCompany := map[string]int{}
	for i, entry := range h.JournalsFor(receipts.SourceType, "RE-2024-100") {
		byCompany[entry.CompanyID] = i
	}
	require.Len(t, byCompany, 2)
	entries := h.JournalsFor(receipts.SourceType, "RE-2024-100")
	receiving := entries[byCompany[ledgertest.CompanyB]]
	charterEntry := entries[byCompany[ledgertest.CompanyA]]
	require.True(t, ledgertest.LineAmount(receiving, "1021").Equal(amount("10000")))
	require.True(t, ledgertest.LineAmount(receiving, "2200").Equal(amount("-10000")))
	require.True(t, ledgertest.LineAmount(charterEntry, "1300").Equal(amount("10000")))
	require.True(t, ledgertest.LineAmount(charterEntry, "4000").Equal(amount("-10000")))

	require.NoError(t, waitCharges(t, outcome))
	records, err := h.Charges.ListByReceipt(ctx, "RE-2024-100")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, ledgertest.CompanyB, records[0].PayingCompanyID)
	require.Equal(t, ledgertest.CompanyA, records[0].OwedToCompanyID)
	require.Equal(t, ledgertest.ProjectA, records[0].ProjectID)
	require.True(t, records[0].Amount.Equal(amount("10000")))
}

func TestChargeFailureKeepsReceiptPosted(t *testing.T) {
	svc, h := newService(t, failingSink{})
	outcome, err := svc.Receive(context.Background(), charter(ledgertest.BankB, "10000"), "accountant-1")
	require.NoError(t, err)
	require.True(t, outcome.Posting.Success)
	require.Error(t, waitCharges(t, outcome))
	require.Len(t, h.JournalsFor(receipts.SourceType, "RE-2024-100"), 2)
}

func TestReceiveSavedButNotPosted(t *testing.T) {
	svc, h := newService(t, nil)
	outcome, err := svc.Receive(context.Background(), charter(ledgertest.BankA, "9000"), "accountant-1")
	require.NoError(t, err)
	require.True(t, outcome.RecordSaved)
	require.False(t, outcome.Posting.Success)
	require.ErrorIs(t, outcome.Posting.Err, shared.ErrUnbalanced)
	require.Empty(t, h.JournalsFor(receipts.SourceType, "RE-2024-100"))
}

func TestReceiveDuplicateIsRejected(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	_, err := svc.Receive(ctx, charter(ledgertest.BankA, "10000"), "accountant-1")
	require.NoError(t, err)

	outcome, err := svc.Receive(ctx, charter(ledgertest.BankA, "10000"), "accountant-2")
	require.ErrorIs(t, err, shared.ErrDuplicateEvent)
	require.False(t, outcome.RecordSaved)
}

func TestReceiveRequiresDate(t *testing.T) {
	svc, _ := newService(t, nil)
	in := charter(ledgertest.BankA, "10000")
	in.ReceivedOn = time.Time{}
	_, err := svc.Receive(context.Background(), in, "accountant-1")
	require.ErrorIs(t, err, shared.ErrInvalidPayload)
}

func TestReplaceLeavesOneJournalSet(t *testing.T) {
	svc, h := newService(t, nil)
	ctx := context.Background()
	first, err := svc.Receive(ctx, charter(ledgertest.BankB, "10000"), "accountant-1")
	require.NoError(t, err)
	require.NoError(t, waitCharges(t, first))

	second, err := svc.Replace(ctx, charter(ledgertest.BankA, "10000"), "accountant-1")
	require.NoError(t, err)
	require.True(t, second.Posting.Success, second.Posting.Error)

	entries := h.JournalsFor(receipts.SourceType, "RE-2024-100")
	require.Len(t, entries, 1)
	require.Equal(t, ledgertest.CompanyA, entries[0].CompanyID)

	records, err := h.Charges.ListByReceipt(ctx, "RE-2024-100")
	require.NoError(t, err)
	require.Empty(t, records)

	active := 0
	list, err := h.Store.ListBySourceDocument(ctx, receipts.SourceType, "RE-2024-100")
	require.NoError(t, err)
	for _, event := range list {
		if event.Active() {
			active++
		}
	}
	require.Equal(t, 1, active)
}

func TestVoidUnknownReceipt(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.Void(context.Background(), "RE-missing", "accountant-1")
	require.ErrorIs(t, err, shared.ErrEventNotFound)
}

func charterAmount(bank, value string) receipts.ReceiptInput {
	in := charter(bank, value)
	in.Receipt.Lines[0].Amount = amount(value)
	return in
}

func TestReceiveOtherReceiptEventIsDuplicate(t *testing.T) {
	svc, h := newService(t, nil)
	ctx := context.Background()
	_, err := svc.Receive(ctx, charter(ledgertest.BankA, "10000"), "accountant-1")
	require.NoError(t, err)

	outcome, err := svc.Receive(ctx, charter(ledgertest.BankB, "10000"), "accountant-2")
	require.ErrorIs(t, err, shared.ErrDuplicateEvent)
	require.False(t, outcome.RecordSaved)
	require.Len(t, h.JournalsFor(receipts.SourceType, "RE-2024-100"), 1)

	_, err = svc.Receive(ctx, charter(ledgertest.BankA, "10000"), "accountant-2")
	require.ErrorIs(t, err, shared.ErrDuplicateEvent)
}

func TestForcePostSwitchesReceiptEventAndDropsCharges(t *testing.T) {
	svc, h := newService(t, nil)
	ctx := context.Background()
	first, err := svc.Receive(ctx, charter(ledgertest.BankB, "10000"), "accountant-1")
	require.NoError(t, err)
	require.NoError(t, waitCharges(t, first))

	in := charter(ledgertest.BankA, "10000")
	in.ForcePost = true
	second, err := svc.Receive(ctx, in, "accountant-1")
	require.NoError(t, err)
	require.True(t, second.Posting.Success, second.Posting.Error)

	entries := h.JournalsFor(receipts.SourceType, "RE-2024-100")
	require.Len(t, entries, 1)
	require.Equal(t, ledgertest.CompanyA, entries[0].CompanyID)
	records, err := h.Charges.ListByReceipt(ctx, "RE-2024-100")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestLateChargeBatchCannotOverwriteReplacement(t *testing.T) {
	for _, newestFirst := range []bool{false, true} {
		sink := &capturingSink{}
		svc, h := newService(t, sink)
		ctx := context.Background()

		first, err := svc.Receive(ctx, charterAmount(ledgertest.BankB, "10000"), "accountant-1")
		require.NoError(t, err)
		require.NoError(t, waitCharges(t, first))
		second, err := svc.Replace(ctx, charterAmount(ledgertest.BankB, "8000"), "accountant-1")
		require.NoError(t, err)
		require.True(t, second.Posting.Success, second.Posting.Error)
		require.NoError(t, waitCharges(t, second))
		require.Len(t, sink.batches, 2)

		stale, current := sink.batches[0], sink.batches[1]
		order := []intercompany.ChargeBatch{stale, current}
		if newestFirst {
			order = []intercompany.ChargeBatch{current, stale}
		}
		for _, batch := range order {
			require.NoError(t, h.Generator.Dispatch(ctx, batch))
		}

		records, err := h.Charges.ListByReceipt(ctx, "RE-2024-100")
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.True(t, records[0].Amount.Equal(amount("8000")), records[0].Amount.String())
		require.Equal(t, current.EventID, records[0].EventID.String())
	}
}

package integration_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/ledgertest"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

var amount = ledgertest.Amount

func receipt(bank string, value string) events.ReceiptReceived {
	return events.ReceiptReceived{
		ReceiptID:     "RE-2024-001",
		ReceiptNumber: "RE-2024-001",
		CompanyID:     ledgertest.CompanyA,
		CustomerName:  "J. Smith",
		Currency:      "THB",
		Lines: []events.ReceiptLine{
			{Description: "Charter 3-5 June", ProjectID: ledgertest.ProjectA, Amount: amount(value)},
		},
		Payments: []events.ReceiptPayment{
			{Amount: amount(value), Method: events.PaymentBankTransfer, BankAccountID: bank},
		},
	}
}

func post(t *testing.T, h *ledgertest.Harness, eventType events.EventType, sourceType, sourceID string, payload events.Payload) events.ProcessResult {
	t.Helper()
	return h.Store.CreateAndProcess(context.Background(), events.Input{
		EventType:          eventType,
		EventDate:          ledgertest.Date,
		AffectedCompanyIDs: payload.Companies(),
		Payload:            payload,
		SourceDocumentType: sourceType,
		SourceDocumentID:   sourceID,
		ActorID:            "accountant-1",
	})
}

func requireBalanced(t *testing.T, entry journals.JournalEntry) {
	t.Helper()
	debit, credit := entry.Totals()
	require.True(t, debit.Equal(credit), "entry %s unbalanced: %s / %s", entry.ID, debit, credit)
}

func TestReceiptSameCompanyPostsOneJournal(t *testing.T) {
	h := ledgertest.New(t)
	result := post(t, h, events.EventReceiptReceived, "receipt", "RE-2024-001", receipt(ledgertest.BankA, "10000"))
	require.True(t, result.Success, result.Error)

	entries := h.JournalsFor("receipt", "RE-2024-001")
	require.Len(t, entries, 1)
	entry := entries[0]
	require.Len(t, entry.Lines, 2)
	require.Equal(t, ledgertest.CompanyA, entry.CompanyID)
	require.Equal(t, "1020", entry.Lines[0].AccountCode)
	require.True(t, entry.Lines[0].Debit.Equal(amount("10000")))
	require.Equal(t, "4000", entry.Lines[1].AccountCode)
	require.True(t, entry.Lines[1].Credit.Equal(amount("10000")))
	require.Equal(t, ledgertest.ProjectA, *entry.Lines[1].ProjectID)
	require.Contains(t, entry.Lines[1].Description, "S/Y Amaya")
	require.Equal(t, fx.SourceManual, entry.FXSource)
	requireBalanced(t, entry)
}

func TestReceiptWithVATAndDeferredRevenue(t *testing.T) {
	h := ledgertest.New(t)
	p := receipt(ledgertest.BankA, "10700")
	p.Lines[0].Amount = amount("10000")
	p.VATAmount = amount("700")
	p.DeferredRevenue = true

	result := post(t, h, events.EventReceiptReceived, "receipt", "RE-2024-001", p)
	require.True(t, result.Success, result.Error)
	entry := h.JournalsFor("receipt", "RE-2024-001")[0]
	require.True(t, ledgertest.LineAmount(entry, "2300").Equal(amount("-10000")))
	require.True(t, ledgertest.LineAmount(entry, "2100").Equal(amount("-700")))
	require.True(t, ledgertest.LineAmount(entry, "1020").Equal(amount("10700")))
	requireBalanced(t, entry)
}

func TestReceiptPaymentsMustCoverRevenue(t *testing.T) {
	h := ledgertest.New(t)
	p := receipt(ledgertest.BankA, "10000")
	p.Payments[0].Amount = amount("9000")

	result := post(t, h, events.EventReceiptReceived, "receipt", "RE-2024-001", p)
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, shared.ErrUnbalanced)
	require.NotNil(t, result.EventID)
	require.Empty(t, h.Journals.All())
}

func TestReceiptIntoOtherCompanyBankIsRejected(t *testing.T) {
	h := ledgertest.New(t)
	result := post(t, h, events.EventReceiptReceived, "receipt", "RE-2024-001", receipt(ledgertest.BankB, "10000"))
	require.False(t, result.Success)
	require.ErrorIs(t, result.Err, shared.ErrAccountResolution)
}

func TestReceiptInForeignCurrencyCarriesSnapshot(t *testing.T) {
	h := ledgertest.New(t)
	p := receipt(ledgertest.BankAUSD, "1000")
	p.Currency = "USD"

	result := post(t, h, events.EventReceiptReceived, "receipt", "RE-2024-001", p)
	require.True(t, result.Success, result.Error)
	entry := h.JournalsFor("receipt", "RE-2024-001")[0]
	require.Equal(t, "USD", entry.Currency)
	require.Equal(t, fx.SourceFallback, entry.FXSource)
	require.True(t, entry.FXRate.Equal(amount("36.50")))
	require.True(t, entry.Lines[0].BaseDebit.Equal(amount("36500")))
}

func TestIntercompanyReceiptPostsMirroredJournals(t *testing.T) {
	h := ledgertest.New(t)
	p := events.ReceiptReceivedIntercompany{
		Receipt:            receipt(ledgertest.BankB, "10000"),
		CharterCompanyID:   ledgertest.CompanyA,
		ReceivingCompanyID: ledgertest.CompanyB,
		DueFromAccountCode: "1300",
		DueToAccountCode:   "2200",
	}
	result := post(t, h, events.EventReceiptReceivedIntercompany, "receipt", "RE-2024-001", p)
	require.True(t, result.Success, result.Error)
	require.Len(t, result.JournalEntryIDs, 2)

	entries := h.JournalsFor("receipt", "RE-2024-001")
	require.Len(t, entries, 2)
	byCompany := map[string]journals.JournalEntry{}
	for _, entry := range entries {
		requireBalanced(t, entry)
		byCompany[entry.CompanyID] = entry
	}
	charter, receiving := byCompany[ledgertest.CompanyA], byCompany[ledgertest.CompanyB]

	require.True(t, ledgertest.LineAmount(receiving, "1021").Equal(amount("10000")))
	require.True(t, ledgertest.LineAmount(receiving, "2200").Equal(amount("-10000")))
	require.True(t, ledgertest.LineAmount(charter, "1300").Equal(amount("10000")))
	require.True(t, ledgertest.LineAmount(charter, "4000").Equal(amount("-10000")))
	require.True(t, ledgertest.LineAmount(charter, "1300").Add(ledgertest.LineAmount(receiving, "2200")).IsZero(),
		"clearing lines must be equal and opposite")
	require.Contains(t, receiving.Description, "Faraway Yachting Co., Ltd.")
	require.Equal(t, *result.JournalEntryID, charter.ID)
}

func TestIntercompanyReceiptWithMixedPayments(t *testing.T) {
	h := ledgertest.New(t)
	r := receipt(ledgertest.BankB, "10000")
	r.Payments = []events.ReceiptPayment{
		{Amount: amount("6000"), Method: events.PaymentBankTransfer, BankAccountID: ledgertest.BankB},
		{Amount: amount("4000"), Method: events.PaymentBankTransfer, BankAccountID: ledgertest.BankA},
	}
	p := events.ReceiptReceivedIntercompany{
		Receipt:            r,
		CharterCompanyID:   ledgertest.CompanyA,
		ReceivingCompanyID: ledgertest.CompanyB,
		DueFromAccountCode: "1300",
		DueToAccountCode:   "2200",
	}
	result := post(t, h, events.EventReceiptReceivedIntercompany, "receipt", "RE-2024-001", p)
	require.True(t, result.Success, result.Error)

	for _, entry := range h.JournalsFor("receipt", "RE-2024-001") {
		requireBalanced(t, entry)
		switch entry.CompanyID {
		case ledgertest.CompanyA:
			require.True(t, ledgertest.LineAmount(entry, "1300").Equal(amount("6000")))
			require.True(t, ledgertest.LineAmount(entry, "1020").Equal(amount("4000")))
		case ledgertest.CompanyB:
			require.True(t, ledgertest.LineAmount(entry, "2200").Equal(amount("-6000")))
		}
	}
}

func TestExpenseApprovedFromPettyCashWithVAT(t *testing.T) {
	h := ledgertest.New(t)
	p := events.ExpenseApproved{
		ExpenseID:     "EXP-1",
		CompanyID:     ledgertest.CompanyA,
		VendorName:    "PTT Station",
		Currency:      "THB",
		Lines:         []events.ExpenseLine{{Description: "Diesel", AccountCode: "5000", ProjectID: ledgertest.ProjectA, Amount: amount("1000")}},
		VATAmount:     amount("70"),
		PaymentMethod: events.PaymentPettyCash,
		WalletID:      ledgertest.WalletA,
	}
	result := post(t, h, events.EventExpenseApproved, "expense", "EXP-1", p)
	require.True(t, result.Success, result.Error)
	entry := h.JournalsFor("expense", "EXP-1")[0]
	require.True(t, ledgertest.LineAmount(entry, "5000").Equal(amount("1000")))
	require.True(t, ledgertest.LineAmount(entry, "1150").Equal(amount("70")))
	require.True(t, ledgertest.LineAmount(entry, "1010").Equal(amount("-1070")))
}

func TestExpenseApprovedOnAccountUsesPayable(t *testing.T) {
	h := ledgertest.New(t)
	p := events.ExpenseApproved{
		ExpenseID:     "EXP-2",
		CompanyID:     ledgertest.CompanyA,
		Currency:      "THB",
		Lines:         []events.ExpenseLine{{Description: "Haul-out", Amount: amount("25000")}},
		PaymentMethod: events.PaymentPayable,
	}
	result := post(t, h, events.EventExpenseApproved, "expense", "EXP-2", p)
	require.True(t, result.Success, result.Error)
	entry := h.JournalsFor("expense", "EXP-2")[0]
	require.True(t, ledgertest.LineAmount(entry, "6900").Equal(amount("25000")))
	require.True(t, ledgertest.LineAmount(entry, "2000").Equal(amount("-25000")))
}

func TestPettyCashExpenseCreatedPostsNothing(t *testing.T) {
	h := ledgertest.New(t)
	p := events.PettyCashExpenseCreated{
		ExpenseID: "PCE-1",
		WalletID:  ledgertest.WalletA,
		CompanyID: ledgertest.CompanyA,
		Currency:  "THB",
		Amount:    amount("500"),
	}
	result := post(t, h, events.EventPettyCashExpenseCreated, "petty_cash_expense", "PCE-1", p)
	require.True(t, result.Success, result.Error)
	require.Nil(t, result.JournalEntryID)
	require.Empty(t, h.Journals.All())
}

func TestPettyCashTopUpMovesBankIntoWallet(t *testing.T) {
	h := ledgertest.New(t)
	p := events.PettyCashTopUpCompleted{
		TopUpID:       "TU-1",
		WalletID:      ledgertest.WalletA,
		CompanyID:     ledgertest.CompanyA,
		Currency:      "THB",
		Amount:        amount("5000"),
		BankAccountID: ledgertest.BankA,
	}
	result := post(t, h, events.EventPettyCashTopUpCompleted, "petty_cash_topup", "TU-1", p)
	require.True(t, result.Success, result.Error)
	entry := h.JournalsFor("petty_cash_topup", "TU-1")[0]
	require.True(t, ledgertest.LineAmount(entry, "1010").Equal(amount("5000")))
	require.True(t, ledgertest.LineAmount(entry, "1020").Equal(amount("-5000")))
}

func TestInventoryEventsUseInventoryAsset(t *testing.T) {
	h := ledgertest.New(t)
	purchase := events.InventoryPurchaseRecorded{
		PurchaseID:    "PO-1",
		CompanyID:     ledgertest.CompanyA,
		Currency:      "THB",
		Lines:         []events.InventoryPurchaseLine{{LineID: "PO-1-1", ItemName: "Engine oil", Quantity: amount("10"), UnitCost: amount("100")}},
		PaymentMethod: events.PaymentPettyCash,
		WalletID:      ledgertest.WalletA,
	}
	require.True(t, post(t, h, events.EventInventoryPurchaseRecorded, "inventory_purchase", "PO-1", purchase).Success)
	entry := h.JournalsFor("inventory_purchase", "PO-1")[0]
	require.True(t, ledgertest.LineAmount(entry, "1200").Equal(amount("1000")))
	require.True(t, ledgertest.LineAmount(entry, "1010").Equal(amount("-1000")))

	consumed := events.InventoryConsumed{
		ConsumptionID:      "CON-1",
		PurchaseLineID:     "PO-1-1",
		CompanyID:          ledgertest.CompanyA,
		Currency:           "THB",
		ItemName:           "Engine oil",
		Quantity:           amount("4"),
		UnitCost:           amount("100"),
		ProjectID:          ledgertest.ProjectA,
		ExpenseAccountCode: "5400",
	}
	require.True(t, post(t, h, events.EventInventoryConsumed, "inventory_consumption", "CON-1", consumed).Success)
	entry = h.JournalsFor("inventory_consumption", "CON-1")[0]
	require.True(t, ledgertest.LineAmount(entry, "5400").Equal(amount("400")))
	require.True(t, ledgertest.LineAmount(entry, "1200").Equal(amount("-400")))
}

func TestUnknownExpenseAccountFailsResolution(t *testing.T) {
	h := ledgertest.New(t)
	p := events.ExpenseApproved{
		ExpenseID:     "EXP-3",
		CompanyID:     ledgertest.CompanyA,
		Currency:      "THB",
		Lines:         []events.ExpenseLine{{Description: "Mystery", AccountCode: "7777", Amount: amount("10")}},
		PaymentMethod: events.PaymentCash,
	}
	result := post(t, h, events.EventExpenseApproved, "expense", "EXP-3", p)
	require.False(t, result.Success)
	var resolution *shared.AccountResolutionError
	require.ErrorAs(t, result.Err, &resolution)
	require.Equal(t, "7777", resolution.Code)
}

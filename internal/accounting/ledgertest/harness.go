// Package ledgertest wires the posting pipeline over in-memory repositories
// for package tests.
package ledgertest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/coa"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/journals"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/mappings"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/directory"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/integration"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/intercompany"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

const (
	CompanyA = "company-a"
	CompanyB = "company-b"
	ProjectA = "project-amaya"
	ProjectB = "project-lumi"
	BankA    = "bank-a-kbank"
	BankAUSD = "bank-a-usd"
	BankB    = "bank-b-bbl"
	WalletA  = "wallet-a-captain"
)

// Date is the default event date used by fixtures.
var Date = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

// Harness holds every collaborator of the pipeline.
type Harness struct {
	Logger    *slog.Logger
	Chart     *coa.Chart
	Directory *directory.Memory
	Journals  *journals.MemoryRepository
	Events    *events.MemoryRepository
	Accounts  *mappings.Resolver
	Rates     *fx.Resolver
	Ledger    *journals.Service
	Handlers  *integration.Handlers
	Store     *events.Store
	Charges   *intercompany.MemoryRepository
	Generator *intercompany.Generator
}

// New builds a harness with two companies, their banks and a USD fallback rate.
func New(t testing.TB) *Harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chart := coa.Default()
	dir := directory.NewMemory().
		AddCompany(directory.Company{ID: CompanyA, Name: "Faraway Yachting Co., Ltd."}).
		AddCompany(directory.Company{ID: CompanyB, Name: "Faraway Charters Phuket"}).
		AddProject(directory.Project{ID: ProjectA, Name: "S/Y Amaya", CompanyID: CompanyA}).
		AddProject(directory.Project{ID: ProjectB, Name: "M/Y Lumi", CompanyID: CompanyA}).
		AddBankAccount(directory.BankAccount{ID: BankA, Name: "Kasikorn THB", GLAccountCode: "1020", CompanyID: CompanyA, Currency: "THB"}).
		AddBankAccount(directory.BankAccount{ID: BankAUSD, Name: "Kasikorn USD", GLAccountCode: "1022", CompanyID: CompanyA, Currency: "USD"}).
		AddBankAccount(directory.BankAccount{ID: BankB, Name: "Bangkok Bank THB", GLAccountCode: "1021", CompanyID: CompanyB, Currency: "THB"})

	fast := shared.RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	accounts := mappings.NewResolver(nil, dir, chart, logger).WithRetryPolicy(fast)
	rates := fx.NewResolver(fx.NewCache(time.Hour, 64), nil, nil, logger,
		fx.WithRetryPolicy(fast),
		fx.WithFallbackRates(map[string]decimal.Decimal{"USD": decimal.RequireFromString("36.50")}),
	)
	ledgerRepo := journals.NewMemoryRepository()
	eventRepo := events.NewMemoryRepository(ledgerRepo)
	ledger := journals.NewService(ledgerRepo, chart, journals.WithRates(rates), journals.WithLogger(logger))
	handlers := integration.NewHandlers(accounts, rates, dir, dir, logger)
	charges := intercompany.NewMemoryRepository().WithEvents(eventRepo)
	return &Harness{
		Logger:    logger,
		Chart:     chart,
		Directory: dir,
		Journals:  ledgerRepo,
		Events:    eventRepo,
		Accounts:  accounts,
		Rates:     rates,
		Ledger:    ledger,
		Handlers:  handlers,
		Store:     events.NewStore(eventRepo, handlers, ledger, logger),
		Charges:   charges,
		Generator: intercompany.NewGenerator(accounts, charges, logger),
	}
}

// Amount parses a decimal literal.
func Amount(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// JournalsFor returns the journals posted for a source document.
func (h *Harness) JournalsFor(sourceType, sourceID string) []journals.JournalEntry {
	var out []journals.JournalEntry
	for _, entry := range h.Journals.All() {
		if entry.SourceDocumentType == sourceType && entry.SourceDocumentID == sourceID {
			out = append(out, entry)
		}
	}
	return out
}

// LineAmount sums debits minus credits posted to code in entry.
func LineAmount(entry journals.JournalEntry, code string) decimal.Decimal {
	total := decimal.Zero
	for _, line := range entry.Lines {
		if line.AccountCode == code {
			total = total.Add(line.Debit).Sub(line.Credit)
		}
	}
	return total
}

// IntercompanyReceiptEvent stores an unprocessed intercompany receipt event
// for receiptID and returns its id.
func (h *Harness) IntercompanyReceiptEvent(t testing.TB, receiptID string) uuid.UUID {
	t.Helper()
	event := events.Event{
		ID:                 uuid.New(),
		Type:               events.EventReceiptReceivedIntercompany,
		EventDate:          Date,
		AffectedCompanyIDs: []string{CompanyA, CompanyB},
		SourceDocumentType: "receipt",
		SourceDocumentID:   receiptID,
		Payload: events.ReceiptReceivedIntercompany{
			Receipt:            events.ReceiptReceived{ReceiptID: receiptID, CompanyID: CompanyA, Currency: "THB"},
			CharterCompanyID:   CompanyA,
			ReceivingCompanyID: CompanyB,
		},
		CreatedBy: "test",
		CreatedAt: Date,
	}
	err := h.Events.WithTx(context.Background(), func(ctx context.Context, tx events.TxRepository) error {
		return tx.InsertEvent(ctx, event)
	})
	if err != nil {
		t.Fatalf("store receipt event: %v", err)
	}
	return event.ID
}

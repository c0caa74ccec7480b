package pettycash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// EventStore records and posts accounting events.
type EventStore interface {
	CreateAndProcess(ctx context.Context, in events.Input) events.ProcessResult
	VoidBySourceDocument(ctx context.Context, sourceType, sourceID, reason string) (int, error)
}

type WalletInput struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	InitialBalance decimal.Decimal `json:"initial_balance" validate:"gte=0"`
}

type ExpenseInput struct {
	WalletID    string          `json:"wallet_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"required"`
	ProjectID   string          `json:"project_id"`
	ExpenseDate time.Time       `json:"expense_date" validate:"required"`
}

type TransferInput struct {
	WalletID      string          `json:"wallet_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	BankAccountID string          `json:"bank_account_id" validate:"required"`
}

// LinkInput controls how a wallet expense enters the expense ledger.
type LinkInput struct {
	VATType VATType `json:"vat_type" validate:"omitempty,oneof=no_vat include exclude"`
	// VATRate is a percentage; nil means DefaultVATRate.
	VATRate            *decimal.Decimal `json:"vat_rate,omitempty"`
	ExpenseAccountCode string           `json:"expense_account_code"`
	// Date of the ledger expense; zero means the wallet expense date.
	Date time.Time `json:"date"`
}

type Service struct {
	repo     Repository
	store    EventStore
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, store EventStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		store:    store,
		validate: internalShared.NewValidator(),
		logger:   logger.With(slog.String("component", "pettycash")),
		now:      time.Now,
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) CreateWallet(ctx context.Context, in WalletInput) (Wallet, error) {
	if err := s.check(in); err != nil {
		return Wallet{}, err
	}
	wallet := Wallet{
		ID:             in.ID,
		CompanyID:      in.CompanyID,
		Name:           in.Name,
		Currency:       in.Currency,
		InitialBalance: internalShared.Round2(in.InitialBalance),
		CreatedAt:      s.now().UTC(),
	}
	if wallet.ID == "" {
		wallet.ID = uuid.NewString()
	}
	if err := s.repo.InsertWallet(ctx, wallet); err != nil {
		return Wallet{}, shared.Storage("insert wallet", err)
	}
	return wallet, nil
}

// Balance derives the wallet balance from its movements.
func (s *Service) Balance(ctx context.Context, walletID string) (Balance, error) {
	b, err := s.repo.Balance(ctx, walletID)
	if err != nil {
		return Balance{}, s.storage("wallet balance", err)
	}
	return b, nil
}

// CreateExpense records money spent from a wallet. The event it fires posts
// no journal; the expense reaches the P&L only once linked.
func (s *Service) CreateExpense(ctx context.Context, in ExpenseInput, actor string) (events.Outcome[Expense], error) {
	if err := s.check(in); err != nil {
		return events.Outcome[Expense]{}, err
	}
	wallet, err := s.repo.GetWallet(ctx, in.WalletID)
	if err != nil {
		return events.Outcome[Expense]{}, s.storage("load wallet", err)
	}
	expense := Expense{
		ID:          uuid.NewString(),
		WalletID:    wallet.ID,
		CompanyID:   wallet.CompanyID,
		Amount:      internalShared.Round2(in.Amount),
		Description: in.Description,
		ProjectID:   in.ProjectID,
		ExpenseDate: in.ExpenseDate,
		Status:      ExpenseSubmitted,
		CreatedBy:   actor,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.InsertExpense(ctx, expense); err != nil {
		return events.Outcome[Expense]{}, shared.Storage("insert expense", err)
	}
	payload := events.PettyCashExpenseCreated{
		ExpenseID:   expense.ID,
		WalletID:    wallet.ID,
		CompanyID:   wallet.CompanyID,
		Currency:    wallet.Currency,
		Amount:      expense.Amount,
		Description: expense.Description,
		ProjectID:   expense.ProjectID,
	}
	result := s.fire(ctx, payload, in.ExpenseDate, SourceExpense, expense.ID, actor)
	return events.Outcome[Expense]{Record: expense, RecordSaved: true, Posting: result}, nil
}

func (s *Service) CreateTopUp(ctx context.Context, in TransferInput) (Transfer, error) {
	return s.createTransfer(ctx, KindTopUp, in)
}

func (s *Service) CreateReimbursement(ctx context.Context, in TransferInput) (Transfer, error) {
	return s.createTransfer(ctx, KindReimbursement, in)
}

// CompleteTopUp marks a pending top-up completed and posts it.
func (s *Service) CompleteTopUp(ctx context.Context, id string, date time.Time, actor string) (events.Outcome[Transfer], error) {
	return s.completeTransfer(ctx, KindTopUp, id, date, actor)
}

// PayReimbursement marks a pending reimbursement paid and posts it.
func (s *Service) PayReimbursement(ctx context.Context, id string, date time.Time, actor string) (events.Outcome[Transfer], error) {
	return s.completeTransfer(ctx, KindReimbursement, id, date, actor)
}

// CreateLinkedExpense moves a submitted wallet expense into the expense
// ledger. The expense is marked linked only when its EXPENSE_APPROVED event
// posts; a failed event is voided so the link can be attempted again.
func (s *Service) CreateLinkedExpense(ctx context.Context, expenseID string, in LinkInput, actor string) (events.Outcome[Expense], error) {
	if err := s.check(in); err != nil {
		return events.Outcome[Expense]{}, err
	}
	expense, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return events.Outcome[Expense]{}, s.storage("load expense", err)
	}
	if expense.Status != ExpenseSubmitted {
		return events.Outcome[Expense]{}, fmt.Errorf("expense %s is %s: %w", expense.ID, expense.Status, ErrStatus)
	}
	wallet, err := s.repo.GetWallet(ctx, expense.WalletID)
	if err != nil {
		return events.Outcome[Expense]{}, s.storage("load wallet", err)
	}
	rate := DefaultVATRate
	if in.VATRate != nil {
		rate = *in.VATRate
	}
	split, err := SplitVAT(expense.Amount, in.VATType, rate)
	if err != nil {
		return events.Outcome[Expense]{}, err
	}
	date := in.Date
	if date.IsZero() {
		date = expense.ExpenseDate
	}
	linkedID := LinkedExpenseID(expense.ID)
	payload := events.ExpenseApproved{
		ExpenseID:     linkedID,
		ExpenseNumber: linkedID,
		CompanyID:     wallet.CompanyID,
		Currency:      wallet.Currency,
		Lines: []events.ExpenseLine{{
			Description: expense.Description,
			AccountCode: in.ExpenseAccountCode,
			ProjectID:   expense.ProjectID,
			Amount:      split.Subtotal,
		}},
		VATAmount:     split.VAT,
		PaymentMethod: events.PaymentPettyCash,
		WalletID:      wallet.ID,
	}
	result := s.fire(ctx, payload, date, SourceLinkedExpense, linkedID, actor)
	outcome := events.Outcome[Expense]{Record: expense, Posting: result}
	if !result.Success {
		if result.EventID == nil {
			return outcome, result.Err
		}
		if _, err := s.store.VoidBySourceDocument(ctx, SourceLinkedExpense, linkedID, "link failed"); err != nil {
			s.logger.Error("void failed link event", slog.String("expense_id", expense.ID), slog.Any("error", err))
		}
		return outcome, nil
	}
	now := s.now().UTC()
	if err := s.repo.LinkExpense(ctx, expense.ID, linkedID, now); err != nil {
		s.logger.Error("expense posted but not marked linked", slog.String("expense_id", expense.ID), slog.Any("error", err))
		return outcome, s.storage("link expense", err)
	}
	expense.Status, expense.LinkedExpenseID, expense.LinkedAt = ExpenseLinked, linkedID, &now
	outcome.Record, outcome.RecordSaved = expense, true
	return outcome, nil
}

// LinkedExpenseID is the ledger expense id derived from a wallet expense.
func LinkedExpenseID(expenseID string) string {
	return "PC-" + expenseID
}

func (s *Service) createTransfer(ctx context.Context, kind TransferKind, in TransferInput) (Transfer, error) {
	if err := s.check(in); err != nil {
		return Transfer{}, err
	}
	if _, err := s.repo.GetWallet(ctx, in.WalletID); err != nil {
		return Transfer{}, s.storage("load wallet", err)
	}
	transfer := Transfer{
		ID:            uuid.NewString(),
		WalletID:      in.WalletID,
		Amount:        internalShared.Round2(in.Amount),
		BankAccountID: in.BankAccountID,
		Status:        TransferPending,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.repo.InsertTransfer(ctx, kind, transfer); err != nil {
		return Transfer{}, shared.Storage("insert "+string(kind), err)
	}
	return transfer, nil
}

func (s *Service) completeTransfer(ctx context.Context, kind TransferKind, id string, date time.Time, actor string) (events.Outcome[Transfer], error) {
	if date.IsZero() {
		date = s.now().UTC().Truncate(24 * time.Hour)
	}
	transfer, err := s.repo.GetTransfer(ctx, kind, id)
	if err != nil {
		return events.Outcome[Transfer]{}, s.storage("load "+string(kind), err)
	}
	wallet, err := s.repo.GetWallet(ctx, transfer.WalletID)
	if err != nil {
		return events.Outcome[Transfer]{}, s.storage("load wallet", err)
	}
	now := s.now().UTC()
	if err := s.repo.CompleteTransfer(ctx, kind, id, now); err != nil {
		return events.Outcome[Transfer]{}, s.storage("complete "+string(kind), err)
	}
	transfer.Status, transfer.CompletedAt = TransferCompleted, &now

	var (
		payload events.Payload
		source  string
	)
	switch kind {
	case KindTopUp:
		source = SourceTopUp
		payload = events.PettyCashTopUpCompleted{
			TopUpID: transfer.ID, WalletID: wallet.ID, CompanyID: wallet.CompanyID,
			Currency: wallet.Currency, Amount: transfer.Amount, BankAccountID: transfer.BankAccountID,
		}
	default:
		source = SourceReimbursement
		payload = events.PettyCashReimbursementPaid{
			ReimbursementID: transfer.ID, WalletID: wallet.ID, CompanyID: wallet.CompanyID,
			Currency: wallet.Currency, Amount: transfer.Amount, BankAccountID: transfer.BankAccountID,
		}
	}
	result := s.fire(ctx, payload, date, source, transfer.ID, actor)
	return events.Outcome[Transfer]{Record: transfer, RecordSaved: true, Posting: result}, nil
}

func (s *Service) fire(ctx context.Context, payload events.Payload, date time.Time, sourceType, sourceID, actor string) events.ProcessResult {
	result := s.store.CreateAndProcess(ctx, events.Input{
		EventType:          payload.EventType(),
		EventDate:          date,
		AffectedCompanyIDs: payload.Companies(),
		Payload:            payload,
		SourceDocumentType: sourceType,
		SourceDocumentID:   sourceID,
		ActorID:            actor,
	})
	if !result.Success {
		s.logger.Warn("petty cash event not posted",
			slog.String("event_type", string(payload.EventType())),
			slog.String("source_id", sourceID),
			slog.Any("error", result.Err))
	}
	return result
}

func (s *Service) check(in any) error {
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", internalShared.ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) storage(op string, err error) error {
	if errors.Is(err, internalShared.ErrNotFound) || errors.Is(err, internalShared.ErrConflict) {
		return err
	}
	return shared.Storage(op, err)
}

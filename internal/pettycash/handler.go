package pettycash

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/httpx"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/wallets", h.CreateWallet)
	r.Get("/wallets/{id}/balance", h.Balance)
	r.Post("/wallets/{id}/expenses", h.CreateExpense)
	r.Post("/wallets/{id}/topups", h.CreateTopUp)
	r.Post("/wallets/{id}/reimbursements", h.CreateReimbursement)
	r.Post("/expenses/{id}/link", h.Link)
	r.Post("/topups/{id}/complete", h.CompleteTopUp)
	r.Post("/reimbursements/{id}/pay", h.PayReimbursement)
}

type expenseRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"required"`
	ProjectID   string          `json:"project_id"`
	ExpenseDate string          `json:"expense_date" validate:"required,datetime=2006-01-02"`
}

type transferRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	BankAccountID string          `json:"bank_account_id" validate:"required"`
}

type completeRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type linkRequest struct {
	VATType            VATType          `json:"vat_type" validate:"omitempty,oneof=no_vat include exclude"`
	VATRate            *decimal.Decimal `json:"vat_rate,omitempty"`
	ExpenseAccountCode string           `json:"expense_account_code"`
	Date               string           `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req WalletInput
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	wallet, err := h.service.CreateWallet(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, wallet)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.Balance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	outcome, err := h.service.CreateExpense(r.Context(), ExpenseInput{
		WalletID:    chi.URLParam(r, "id"),
		Amount:      req.Amount,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		ExpenseDate: parseDate(req.ExpenseDate),
	}, internalShared.ActorFromContext(r.Context()))
	writeOutcome(w, h.logger, outcome.Posting.Err, outcome.Posting.Success, outcome, err)
}

func (h *Handler) CreateTopUp(w http.ResponseWriter, r *http.Request) {
	h.createTransfer(w, r, h.service.CreateTopUp)
}

func (h *Handler) CreateReimbursement(w http.ResponseWriter, r *http.Request) {
	h.createTransfer(w, r, h.service.CreateReimbursement)
}

func (h *Handler) CompleteTopUp(w http.ResponseWriter, r *http.Request) {
	h.completeTransfer(w, r, h.service.CompleteTopUp)
}

func (h *Handler) PayReimbursement(w http.ResponseWriter, r *http.Request) {
	h.completeTransfer(w, r, h.service.PayReimbursement)
}

func (h *Handler) Link(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	outcome, err := h.service.CreateLinkedExpense(r.Context(), chi.URLParam(r, "id"), LinkInput{
		VATType:            req.VATType,
		VATRate:            req.VATRate,
		ExpenseAccountCode: req.ExpenseAccountCode,
		Date:               parseDate(req.Date),
	}, internalShared.ActorFromContext(r.Context()))
	writeOutcome(w, h.logger, outcome.Posting.Err, outcome.Posting.Success, outcome, err)
}

func (h *Handler) createTransfer(w http.ResponseWriter, r *http.Request, create func(ctx context.Context, in TransferInput) (Transfer, error)) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	transfer, err := create(r.Context(), TransferInput{WalletID: chi.URLParam(r, "id"), Amount: req.Amount, BankAccountID: req.BankAccountID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transfer)
}

func (h *Handler) completeTransfer(w http.ResponseWriter, r *http.Request, complete func(ctx context.Context, id string, date time.Time, actor string) (events.Outcome[Transfer], error)) {
	var req completeRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	outcome, err := complete(r.Context(), chi.URLParam(r, "id"), parseDate(req.Date), internalShared.ActorFromContext(r.Context()))
	writeOutcome(w, h.logger, outcome.Posting.Err, outcome.Posting.Success, outcome, err)
}

// writeOutcome sends 200 when the event posted, the event error's status when
// only the record was saved, and a problem when nothing was saved.
func writeOutcome(w http.ResponseWriter, logger *slog.Logger, postErr error, posted bool, body any, err error) {
	switch {
	case err != nil:
		httpx.RespondError(w, err)
	case posted:
		httpx.JSON(w, http.StatusOK, body)
	default:
		status, _ := httpx.Status(postErr)
		if status >= http.StatusInternalServerError {
			logger.Error("petty cash posting failed", slog.Any("error", postErr))
		}
		httpx.JSON(w, status, body)
	}
}

func parseDate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	date, _ := time.Parse(time.DateOnly, value)
	return date
}

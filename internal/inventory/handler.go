package inventory

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/events"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/httpx"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchases", h.RecordPurchase)
	r.Get("/purchases/{id}", h.ShowPurchase)
	r.Post("/lines/{id}/consume", h.Consume)
	r.Get("/lines/{id}/consumptions", h.ListConsumptions)
}

type purchaseRequest struct {
	PurchaseNumber string               `json:"purchase_number"`
	CompanyID      string               `json:"company_id" validate:"required"`
	Currency       string               `json:"currency" validate:"required,len=3"`
	PurchaseDate   string               `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	PaymentMethod  events.PaymentMethod `json:"payment_method" validate:"required"`
	BankAccountID  string               `json:"bank_account_id"`
	WalletID       string               `json:"wallet_id"`
	Lines          []PurchaseLineInput  `json:"lines" validate:"required,min=1"`
}

type consumeRequest struct {
	Quantity           decimal.Decimal `json:"quantity" validate:"gt=0"`
	ProjectID          string          `json:"project_id"`
	ExpenseAccountCode string          `json:"expense_account_code"`
	ConsumedOn         string          `json:"consumed_on" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := time.Parse(time.DateOnly, req.PurchaseDate)
	outcome, err := h.service.RecordPurchase(r.Context(), PurchaseInput{
		PurchaseNumber: req.PurchaseNumber,
		CompanyID:      req.CompanyID,
		Currency:       req.Currency,
		PurchaseDate:   date,
		PaymentMethod:  req.PaymentMethod,
		BankAccountID:  req.BankAccountID,
		WalletID:       req.WalletID,
		Lines:          req.Lines,
	}, internalShared.ActorFromContext(r.Context()))
	h.writeOutcome(w, outcome.Posting, outcome, err)
}

func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := time.Parse(time.DateOnly, req.ConsumedOn)
	outcome, err := h.service.Consume(r.Context(), ConsumeInput{
		LineID:             chi.URLParam(r, "id"),
		Quantity:           req.Quantity,
		ProjectID:          req.ProjectID,
		ExpenseAccountCode: req.ExpenseAccountCode,
		ConsumedOn:         date,
	}, internalShared.ActorFromContext(r.Context()))
	h.writeOutcome(w, outcome.Posting, outcome, err)
}

func (h *Handler) ShowPurchase(w http.ResponseWriter, r *http.Request) {
	purchase, err := h.service.GetPurchase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, purchase)
}

func (h *Handler) ListConsumptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Consumptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Consumption{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"consumptions": list})
}

func (h *Handler) writeOutcome(w http.ResponseWriter, posting events.ProcessResult, body any, err error) {
	switch {
	case err != nil:
		httpx.RespondError(w, err)
	case posting.Success:
		httpx.JSON(w, http.StatusCreated, body)
	default:
		status, _ := httpx.Status(posting.Err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("inventory posting failed", slog.Any("error", posting.Err))
		}
		httpx.JSON(w, status, body)
	}
}

package receipts

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

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
	r.Post("/", h.Receive)
	r.Put("/{id}", h.Replace)
	r.Post("/{id}/void", h.Void)
}

type receiptRequest struct {
	Receipt    events.ReceiptReceived `json:"receipt" validate:"required"`
	ReceivedOn string                 `json:"received_on" validate:"required,datetime=2006-01-02"`
	ForcePost  bool                   `json:"force_post"`
}

func (req receiptRequest) input() ReceiptInput {
	// datetime validation already passed
	date, _ := time.Parse(time.DateOnly, req.ReceivedOn)
	return ReceiptInput{Receipt: req.Receipt, ReceivedOn: date, ForcePost: req.ForcePost}
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	outcome, err := h.service.Receive(r.Context(), req.input(), internalShared.ActorFromContext(r.Context()))
	h.writeOutcome(w, outcome, err, http.StatusCreated)
}

func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if req.Receipt.ReceiptID != chi.URLParam(r, "id") {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "receipt id does not match the path")
		return
	}
	outcome, err := h.service.Replace(r.Context(), req.input(), internalShared.ActorFromContext(r.Context()))
	h.writeOutcome(w, outcome, err, http.StatusOK)
}

func (h *Handler) Void(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Void(r.Context(), chi.URLParam(r, "id"), internalShared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) writeOutcome(w http.ResponseWriter, outcome Outcome, err error, okStatus int) {
	switch {
	case err != nil:
		httpx.RespondError(w, err)
	case outcome.Posting.Success:
		httpx.JSON(w, okStatus, outcome)
	default:
		status, _ := httpx.Status(outcome.Posting.Err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("receipt posting failed", slog.Any("error", outcome.Posting.Err))
		}
		httpx.JSON(w, status, outcome)
	}
}

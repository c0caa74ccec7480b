// Package fxhttp serves FX snapshots over HTTP.
package fxhttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/httpx"
)

// RateService is the part of fx.Resolver the HTTP layer needs.
type RateService interface {
	Resolve(ctx context.Context, currency string, date time.Time) (fx.Snapshot, error)
	SetManualRate(ctx context.Context, currency string, date time.Time, rate decimal.Decimal) (fx.Snapshot, error)
}

// Handler exposes rate lookups and manual overrides.
type Handler struct {
	rates  RateService
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(logger *slog.Logger, rates RateService) *Handler {
	return &Handler{rates: rates, logger: logger, now: time.Now}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{currency}", h.Show)
	r.Put("/{currency}", h.SetManual)
}

// Show resolves the rate for ?date= (default today).
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	date := h.now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}
	snap, err := h.rates.Resolve(r.Context(), chi.URLParam(r, "currency"), date)
	if err != nil {
		h.logger.Warn("fx lookup failed", slog.String("currency", chi.URLParam(r, "currency")), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

type manualRateRequest struct {
	Date string          `json:"date" validate:"required,datetime=2006-01-02"`
	Rate decimal.Decimal `json:"rate" validate:"gt=0"`
}

// SetManual stores an operator rate for one day.
func (h *Handler) SetManual(w http.ResponseWriter, r *http.Request) {
	var req manualRateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)
	snap, err := h.rates.SetManualRate(r.Context(), chi.URLParam(r, "currency"), date, req.Rate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("manual fx rate set", slog.String("currency", snap.From), slog.String("date", req.Date), slog.String("rate", snap.Rate.String()))
	httpx.JSON(w, http.StatusOK, snap)
}

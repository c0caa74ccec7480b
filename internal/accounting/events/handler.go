package events

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/httpx"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Post("/{id}/retry", h.Retry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var raw RawInput
	if err := httpx.DecodeJSON(r, &raw); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := raw.Input(internalShared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.writeResult(w, h.store.CreateAndProcess(r.Context(), input), http.StatusCreated)
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}
	h.writeResult(w, h.store.Retry(r.Context(), id), http.StatusOK)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := eventID(w, r)
	if !ok {
		return
	}
	event, err := h.store.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, event)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sourceType := r.URL.Query().Get("source_type")
	sourceID := r.URL.Query().Get("source_id")
	if sourceType == "" || sourceID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "source_type and source_id are required")
		return
	}
	events, err := h.store.ListBySourceDocument(r.Context(), sourceType, sourceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if events == nil {
		events = []Event{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": events})
}

// writeResult sends the process result itself, so a caller can tell a saved
// event whose journal failed (event_id present) from a rejected request.
func (h *Handler) writeResult(w http.ResponseWriter, result ProcessResult, okStatus int) {
	if result.Success {
		httpx.JSON(w, okStatus, result)
		return
	}
	status, _ := httpx.Status(result.Err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("event request failed", slog.Any("error", result.Err))
	}
	httpx.JSON(w, status, result)
}

func eventID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid event id")
		return uuid.Nil, false
	}
	return id, true
}

package journals

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	sourceType, sourceID, ok := sourceParams(w, r)
	if !ok {
		return
	}
	entries, err := h.service.ListBySourceDocument(r.Context(), sourceType, sourceID)
	if err != nil {
		h.logger.Error("list journals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid journal id")
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	sourceType, sourceID, ok := sourceParams(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteBySourceDocument(r.Context(), sourceType, sourceID)
	if err != nil {
		h.logger.Error("delete journals", slog.String("source_id", sourceID), slog.String("actor", internalShared.ActorFromContext(r.Context())), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func sourceParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	sourceType := r.URL.Query().Get("source_type")
	sourceID := r.URL.Query().Get("source_id")
	if sourceType == "" || sourceID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "source_type and source_id are required")
		return "", "", false
	}
	return sourceType, sourceID, true
}

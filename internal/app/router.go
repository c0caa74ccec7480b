package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/observability"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/platform/httpx"
)

// Mounter is implemented by every domain handler.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	EventsHandler    Mounter
	JournalsHandler  Mounter
	ReceiptsHandler  Mounter
	FXHandler        Mounter
	PettyCashHandler Mounter
	InventoryHandler Mounter
	JobHandler       Mounter

	// Checks are probed by /healthz, keyed by name.
	Checks map[string]Pinger
}

// NewRouter constructs the chi.Router with the ledger defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.Checks))

	r.Route("/api", func(r chi.Router) {
		mount(r, "/events", params.EventsHandler)
		mount(r, "/journals", params.JournalsHandler)
		mount(r, "/receipts", params.ReceiptsHandler)
		mount(r, "/fx", params.FXHandler)
		mount(r, "/pettycash", params.PettyCashHandler)
		mount(r, "/inventory", params.InventoryHandler)
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}

func mount(r chi.Router, prefix string, h Mounter) {
	if h == nil {
		return
	}
	r.Route(prefix, h.MountRoutes)
}

func healthHandler(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		httpx.JSON(w, status, report)
	}
}

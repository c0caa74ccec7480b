package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/observability"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FX_FALLBACK_RATES", "usd=36.5, EUR=39.25")
	t.Setenv("APP_ENV", "test")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.Equal(t, 3, cfg.FXRetryAttempts)
	require.False(t, cfg.IsProduction())

	rates, err := cfg.FallbackRates()
	require.NoError(t, err)
	require.Equal(t, "36.5", rates["USD"].String())
	require.Equal(t, "39.25", rates["EUR"].String())
}

func TestLoadConfigRejectsBadFallback(t *testing.T) {
	t.Setenv("FX_FALLBACK_RATES", "USD:36.5")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("FX_FALLBACK_RATES", "USD=-1")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestActorMiddleware(t *testing.T) {
	var seen string
	h := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(ActorHeader, "acct-lead")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, "acct-lead", seen)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, shared.SystemActor, seen)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type echoRoutes struct{}

func (echoRoutes) MountRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(shared.ActorFromContext(r.Context())))
	})
}

func TestRouterHealthAndMounts(t *testing.T) {
	router := NewRouter(RouterParams{
		Config:          &Config{AppEnv: "test"},
		Metrics:         observability.NewMetrics(),
		JournalsHandler: echoRoutes{},
		Checks: map[string]Pinger{
			"postgres": pingFunc(func(context.Context) error { return nil }),
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"postgres":"ok"`)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodGet, "/api/journals", nil)
	req.Header.Set(ActorHeader, "user-9")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "user-9", rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/receipts", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "ledger_http_requests_total")
}

func TestHealthDegraded(t *testing.T) {
	router := NewRouter(RouterParams{
		Checks: map[string]Pinger{
			"redis": pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") }),
		},
	})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "refused")
}

func TestInTestMode(t *testing.T) {
	t.Setenv("LEDGER_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv("LEDGER_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}

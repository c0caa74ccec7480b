package receipts_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/receipts"
)

const receiptBody = `{
  "received_on": "2024-06-03",
  "receipt": {
    "receipt_id": "RE-2024-100",
    "company_id": "company-a",
    "currency": "THB",
    "vat_amount": "0",
    "lines": [{"description": "Charter", "project_id": "project-amaya", "amount": "10000"}],
    "payments": [{"amount": "10000", "method": "bank_transfer", "bank_account_id": "bank-a-kbank"}]
  }
}`

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, h := newService(t, nil)
	r := chi.NewRouter()
	receipts.NewHandler(h.Logger, svc).MountRoutes(r)
	return r
}

func TestHandlerReceive(t *testing.T) {
	router := newRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(receiptBody)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		RecordSaved bool `json:"record_saved"`
		Posting     struct {
			Success bool `json:"success"`
		} `json:"posting"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.RecordSaved)
	require.True(t, body.Posting.Success)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(receiptBody)))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerRejectsBadDate(t *testing.T) {
	router := newRouter(t)
	body := strings.Replace(receiptBody, "2024-06-03", "03/06/2024", 1)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerReplaceChecksPath(t *testing.T) {
	router := newRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/RE-other", strings.NewReader(receiptBody)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerVoidUnknown(t *testing.T) {
	router := newRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/RE-missing/void", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

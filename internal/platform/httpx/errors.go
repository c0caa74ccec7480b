// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/fx"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrValidation = errors.New("validation failed")
)

type mapping struct {
	status int
	title  string
	errs   []error
}

// Order matters: duplicate and not-found are checked before the generic validation group.
var mappings = []mapping{
	{http.StatusConflict, "Duplicate", []error{shared.ErrDuplicateEvent, shared.ErrSourceConflict, shared.ErrEventProcessed, internalShared.ErrConflict}},
	{http.StatusNotFound, "Not Found", []error{ErrNotFound, internalShared.ErrNotFound, shared.ErrJournalNotFound, shared.ErrEventNotFound, shared.ErrMappingNotFound, fx.ErrRateNotFound}},
	{http.StatusUnprocessableEntity, "Unprocessable Entity", []error{
		shared.ErrUnbalanced, shared.ErrTooFewLines, shared.ErrInvalidLine, shared.ErrCurrencyMismatch,
		shared.ErrAccountResolution, shared.ErrInvalidPayload, fx.ErrInvalidCurrency,
		internalShared.ErrInvalidInput,
	}},
	{http.StatusBadRequest, "Validation Failed", []error{ErrValidation}},
	{http.StatusServiceUnavailable, "Service Unavailable", []error{shared.ErrStorage, fx.ErrRateUnavailable, internalShared.ErrUnavailable}},
}

// Status maps a domain error to its HTTP status and problem title.
func Status(err error) (int, string) {
	for _, m := range mappings {
		for _, target := range m.errs {
			if errors.Is(err, target) {
				return m.status, m.title
			}
		}
	}
	return http.StatusInternalServerError, "Internal Error"
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status, title := Status(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = ""
	}
	Problem(w, status, title, detail)
}

// Package fx resolves conversion rates into the group base currency.
package fx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// BaseCurrency is the reporting currency every rate converts into.
const BaseCurrency = "THB"

// Source tags where a rate came from.
type Source string

const (
	SourceBOT      Source = "bot"
	SourceFallback Source = "fallback"
	SourceManual   Source = "manual"
	SourceAPI      Source = "api"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case SourceBOT, SourceFallback, SourceManual, SourceAPI:
		return true
	}
	return false
}

var (
	// ErrRateNotFound indicates a store or provider has no rate for the key.
	ErrRateNotFound = errors.New("fx: rate not found")
	// ErrRateUnavailable indicates no source could produce a rate.
	ErrRateUnavailable = errors.New("fx: rate unavailable")
	// ErrInvalidCurrency indicates a code that is not ISO 4217.
	ErrInvalidCurrency = errors.New("fx: invalid currency")
)

// Snapshot is the rate converting one unit of From into To on Date.
type Snapshot struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Rate   decimal.Decimal `json:"rate"`
	Date   time.Time       `json:"date"`
	Source Source          `json:"source"`
}

// Identity returns the rate of the base currency to itself.
func Identity(date time.Time) Snapshot {
	return Snapshot{From: BaseCurrency, To: BaseCurrency, Rate: decimal.NewFromInt(1), Date: Day(date), Source: SourceManual}
}

// Convert returns amount expressed in the snapshot's target currency.
func (s Snapshot) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.Rate).Round(2)
}

// NormalizeCurrency upper-cases code and checks it against ISO 4217.
func NormalizeCurrency(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return "", fmt.Errorf("%w: empty code", ErrInvalidCurrency)
	}
	unit, err := currency.ParseISO(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCurrency, normalized)
	}
	return unit.String(), nil
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cacheKey(currency string, date time.Time) string {
	return currency + "|" + date.Format(time.DateOnly)
}

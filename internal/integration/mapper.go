package integration

import (
	"strings"

	"github.com/shopspring/decimal"
)

func label(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " - ")
}

func documentRef(number, id string) string {
	if number != "" {
		return number
	}
	return id
}

func sumAmounts(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}

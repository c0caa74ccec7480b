package pettycash

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
)

func TestSplitVAT(t *testing.T) {
	d := decimal.RequireFromString
	cases := []struct {
		name                 string
		amount               string
		vatType              VATType
		rate                 string
		subtotal, vat, total string
	}{
		{"no vat", "500", VATNone, "7", "500", "0", "500"},
		{"empty type means no vat", "500", "", "7", "500", "0", "500"},
		{"include", "535", VATInclude, "7", "500", "35", "535"},
		{"include rounds subtotal", "100", VATInclude, "7", "93.46", "6.54", "100"},
		{"exclude", "500", VATExclude, "7", "500", "35", "535"},
		{"exclude rounds vat", "99.99", VATExclude, "7", "99.99", "7", "106.99"},
		{"zero rate", "500", VATInclude, "0", "500", "0", "500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split, err := SplitVAT(d(tc.amount), tc.vatType, d(tc.rate))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !split.Subtotal.Equal(d(tc.subtotal)) || !split.VAT.Equal(d(tc.vat)) || !split.Total.Equal(d(tc.total)) {
				t.Fatalf("got %s + %s = %s, want %s + %s = %s", split.Subtotal, split.VAT, split.Total, tc.subtotal, tc.vat, tc.total)
			}
			if !split.Subtotal.Add(split.VAT).Equal(split.Total) {
				t.Fatalf("parts do not add up")
			}
		})
	}
}

func TestSplitVATRejects(t *testing.T) {
	if _, err := SplitVAT(decimal.NewFromInt(1), "gross", DefaultVATRate); !errors.Is(err, shared.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload for unknown type, got %v", err)
	}
	if _, err := SplitVAT(decimal.NewFromInt(1), VATInclude, decimal.NewFromInt(-7)); !errors.Is(err, shared.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload for negative rate, got %v", err)
	}
}

package pettycash

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/accounting/shared"
	internalShared "github.com/faraway-yachting/Faraway-Yachting.app-sub006/internal/shared"
)

type VATType string

const (
	VATNone    VATType = "no_vat"
	VATInclude VATType = "include"
	VATExclude VATType = "exclude"
)

// DefaultVATRate is the Thai VAT rate in percent.
var DefaultVATRate = decimal.NewFromInt(7)

var hundred = decimal.NewFromInt(100)

// VATSplit is an amount split into its net and tax parts.
type VATSplit struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	VAT      decimal.Decimal `json:"vat"`
	Total    decimal.Decimal `json:"total"`
}

// SplitVAT derives subtotal and VAT from a wallet amount. For include the
// amount is the gross total; for exclude VAT is added on top.
func SplitVAT(amount decimal.Decimal, vatType VATType, rate decimal.Decimal) (VATSplit, error) {
	if rate.IsNegative() {
		return VATSplit{}, fmt.Errorf("%w: negative VAT rate", shared.ErrInvalidPayload)
	}
	switch vatType {
	case VATNone, "":
		return VATSplit{Subtotal: amount, VAT: decimal.Zero, Total: amount}, nil
	case VATInclude:
		subtotal := internalShared.Round2(amount.Mul(hundred).Div(hundred.Add(rate)))
		return VATSplit{Subtotal: subtotal, VAT: amount.Sub(subtotal), Total: amount}, nil
	case VATExclude:
		vat := internalShared.Round2(amount.Mul(rate).Div(hundred))
		return VATSplit{Subtotal: amount, VAT: vat, Total: amount.Add(vat)}, nil
	}
	return VATSplit{}, fmt.Errorf("%w: unknown VAT type %q", shared.ErrInvalidPayload, vatType)
}

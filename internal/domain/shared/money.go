package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencyCode is the only currency the storefront sells in
const CurrencyCode = "BRL"

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL renders an amount for display, e.g. "R$ 59,90"
func FormatBRL(amount decimal.Decimal) string {
	return brlPrinter.Sprint(currency.Symbol(currency.BRL.Amount(amount.Round(2).InexactFloat64())))
}

// ToCents converts a BRL amount to integer centavos, rounding half up
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromCents converts integer centavos to a BRL amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Package billing holds the pure amount calculations: support fee, system fee,
// statutory withholding and the per-invoice reconciliation. Every amount is
// integer yen and nothing here touches I/O.
package billing

import (
	"github.com/shopspring/decimal"
)

const (
	// WithholdingThreshold is the boundary between the two withholding brackets.
	WithholdingThreshold int64 = 1_000_000
	// SystemFeePercent is the fixed platform cut on operator billing.
	SystemFeePercent int64 = 30
	// DefaultSupportFeePercent applies when configuration does not override it.
	DefaultSupportFeePercent int64 = 8
)

var (
	hundred             = decimal.NewFromInt(100)
	lowerBracketRate    = decimal.RequireFromString("0.1021")
	upperBracketRate    = decimal.RequireFromString("0.2042")
	upperBracketBase    = decimal.NewFromInt(102_100)
	withholdingBoundary = decimal.NewFromInt(WithholdingThreshold)
)

// Rates is the configuration snapshot a calculation runs with.
type Rates struct {
	SupportPercent decimal.Decimal
}

// DefaultRates returns the rates used when nothing is configured.
func DefaultRates() Rates {
	return Rates{SupportPercent: decimal.NewFromInt(DefaultSupportFeePercent)}
}

// SupportFee is round(amount × percent / 100) when support is enabled, else 0.
func SupportFee(amount int64, percent decimal.Decimal, enabled bool) int64 {
	if !enabled {
		return 0
	}
	return percentOf(amount, percent)
}

// SystemFee is the operator's fixed cut, round(amount × 30 / 100).
func SystemFee(amount int64) int64 {
	return percentOf(amount, decimal.NewFromInt(SystemFeePercent))
}

// WithholdingTax applies the two-bracket Japanese withholding on fees:
// 10.21% up to one million yen, 20.42% on the excess plus 102,100.
func WithholdingTax(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	value := decimal.NewFromInt(amount)
	if amount <= WithholdingThreshold {
		return value.Mul(lowerBracketRate).Floor().IntPart()
	}
	return value.Sub(withholdingBoundary).Mul(upperBracketRate).Add(upperBracketBase).Floor().IntPart()
}

// Amounts is the contractor-side breakdown of one contract.
type Amounts struct {
	Base        int64 `json:"base"`
	Fee         int64 `json:"fee"`
	Subtotal    int64 `json:"subtotal"`
	Withholding int64 `json:"withholding"`
	Final       int64 `json:"final"`
}

// InvoiceAmounts derives the contractor-side amounts from a contract amount.
func InvoiceAmounts(amount int64, percent decimal.Decimal, supportEnabled bool) Amounts {
	fee := SupportFee(amount, percent, supportEnabled)
	subtotal := amount - fee
	withholding := WithholdingTax(subtotal)
	return Amounts{
		Base:        amount,
		Fee:         fee,
		Subtotal:    subtotal,
		Withholding: withholding,
		Final:       subtotal - withholding,
	}
}

// OperatorAmounts is the organization-side breakdown of one contract.
type OperatorAmounts struct {
	Base         int64 `json:"base"`
	SupportFee   int64 `json:"support_fee"`
	SystemFee    int64 `json:"system_fee"`
	TotalBilling int64 `json:"total_billing"`
}

// OperatorInvoiceAmounts derives the operator-side amounts. The support fee and
// the system fee are independent and both are billed.
func OperatorInvoiceAmounts(amount int64, percent decimal.Decimal, supportEnabled bool) OperatorAmounts {
	support := SupportFee(amount, percent, supportEnabled)
	system := SystemFee(amount)
	return OperatorAmounts{
		Base:         amount,
		SupportFee:   support,
		SystemFee:    system,
		TotalBilling: system + support,
	}
}

func percentOf(amount int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Round(0).IntPart()
}

package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nurpe/subcontract-billing/internal/model"
)

// Totals are the four stored amount fields of an invoice.
type Totals struct {
	Base      int64
	Fee       int64
	SystemFee int64
	Total     int64
}

// InvoiceTotals sums per-contract amounts for one invoice. Fees are computed
// per contract and then summed; withholding on contractor invoices is applied
// once on the invoice subtotal.
func InvoiceTotals(direction model.InvoiceDirection, refs []model.InvoiceReference, percent decimal.Decimal) Totals {
	var totals Totals
	for _, ref := range refs {
		totals.Base += ref.Amount
		totals.Fee += SupportFee(ref.Amount, percent, ref.SupportEnabled)
		if direction == model.InvoiceDirectionOperator {
			totals.SystemFee += SystemFee(ref.Amount)
		}
	}
	switch direction {
	case model.InvoiceDirectionOperator:
		totals.Total = totals.SystemFee + totals.Fee
	default:
		totals.Total = totals.Base - totals.Fee
		totals.SystemFee = WithholdingTax(totals.Total)
	}
	return totals
}

// Mismatch lists the invoice fields whose stored value differs from the
// recomputed one.
type Mismatch struct {
	Field    string `json:"field"`
	Stored   int64  `json:"stored"`
	Expected int64  `json:"expected"`
}

// IntegrityError reports an invoice whose stored amounts do not reconcile.
type IntegrityError struct {
	InvoiceID  string
	Mismatches []Mismatch
}

func (e *IntegrityError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, fmt.Sprintf("%s stored=%d expected=%d", m.Field, m.Stored, m.Expected))
	}
	return fmt.Sprintf("invoice %s does not reconcile: %s", e.InvoiceID, strings.Join(parts, ", "))
}

// Reconcile recomputes an invoice from its references and the support percent
// it was issued with. It never modifies the invoice.
func Reconcile(invoice model.Invoice) error {
	percent, err := decimal.NewFromString(invoice.SupportPercent)
	if err != nil {
		return &IntegrityError{
			InvoiceID:  invoice.ID.String(),
			Mismatches: []Mismatch{{Field: "support_percent"}},
		}
	}

	expected := InvoiceTotals(invoice.Direction, invoice.References, percent)
	var mismatches []Mismatch
	check := func(field string, stored, want int64) {
		if stored != want {
			mismatches = append(mismatches, Mismatch{Field: field, Stored: stored, Expected: want})
		}
	}
	check("base_amount", invoice.BaseAmount, expected.Base)
	check("fee_amount", invoice.FeeAmount, expected.Fee)
	check("system_fee", invoice.SystemFee, expected.SystemFee)
	check("total_amount", invoice.TotalAmount, expected.Total)

	if len(mismatches) > 0 {
		return &IntegrityError{InvoiceID: invoice.ID.String(), Mismatches: mismatches}
	}
	return nil
}

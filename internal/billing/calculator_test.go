package billing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/subcontract-billing/internal/model"
)

var eight = decimal.NewFromInt(8)

func TestSupportFee(t *testing.T) {
	t.Run("disabled is zero", func(t *testing.T) {
		assert.Equal(t, int64(0), SupportFee(1_000_000, eight, false))
	})

	t.Run("eight percent of one million", func(t *testing.T) {
		assert.Equal(t, int64(80_000), SupportFee(1_000_000, eight, true))
	})

	t.Run("rounds to nearest yen", func(t *testing.T) {
		// 12,345 × 8% = 987.6
		assert.Equal(t, int64(988), SupportFee(12_345, eight, true))
		// 1,256 × 8% = 100.48
		assert.Equal(t, int64(100), SupportFee(1_256, eight, true))
	})

	t.Run("half rounds up", func(t *testing.T) {
		// 15 × 10% = 1.5
		assert.Equal(t, int64(2), SupportFee(15, decimal.NewFromInt(10), true))
	})

	t.Run("fractional percent", func(t *testing.T) {
		assert.Equal(t, int64(105), SupportFee(1_000, decimal.RequireFromString("10.5"), true))
	})
}

func TestSystemFee(t *testing.T) {
	assert.Equal(t, int64(300_000), SystemFee(1_000_000))
	// 333 × 30% = 99.9
	assert.Equal(t, int64(100), SystemFee(333))
}

func TestWithholdingTax(t *testing.T) {
	t.Run("lower bracket floors", func(t *testing.T) {
		assert.Equal(t, int64(93_932), WithholdingTax(920_000))
		// 999 × 0.1021 = 101.9979
		assert.Equal(t, int64(101), WithholdingTax(999))
	})

	t.Run("continuous at the bracket boundary", func(t *testing.T) {
		lower := decimal.NewFromInt(WithholdingThreshold).Mul(lowerBracketRate).Floor().IntPart()
		upper := decimal.Zero.Mul(upperBracketRate).Add(upperBracketBase).Floor().IntPart()
		assert.Equal(t, int64(102_100), lower)
		assert.Equal(t, int64(102_100), upper)
		assert.Equal(t, int64(102_100), WithholdingTax(1_000_000))
	})

	t.Run("upper bracket", func(t *testing.T) {
		// (1,500,000 - 1,000,000) × 0.2042 + 102,100 = 204,200
		assert.Equal(t, int64(204_200), WithholdingTax(1_500_000))
		// 1 × 0.2042 + 102,100 = 102,100.2042
		assert.Equal(t, int64(102_100), WithholdingTax(1_000_001))
	})

	t.Run("non positive", func(t *testing.T) {
		assert.Equal(t, int64(0), WithholdingTax(0))
		assert.Equal(t, int64(0), WithholdingTax(-10))
	})
}

func TestInvoiceAmounts(t *testing.T) {
	t.Run("support enabled at eight percent", func(t *testing.T) {
		got := InvoiceAmounts(1_000_000, eight, true)
		assert.Equal(t, Amounts{
			Base:        1_000_000,
			Fee:         80_000,
			Subtotal:    920_000,
			Withholding: 93_932,
			Final:       826_068,
		}, got)
	})

	t.Run("support disabled", func(t *testing.T) {
		got := InvoiceAmounts(1_000_000, eight, false)
		assert.Equal(t, int64(0), got.Fee)
		assert.Equal(t, int64(1_000_000), got.Subtotal)
		assert.Equal(t, int64(102_100), got.Withholding)
		assert.Equal(t, int64(897_900), got.Final)
	})
}

func TestOperatorInvoiceAmounts(t *testing.T) {
	got := OperatorInvoiceAmounts(1_000_000, eight, true)
	assert.Equal(t, int64(80_000), got.SupportFee)
	assert.Equal(t, int64(300_000), got.SystemFee)
	assert.Equal(t, int64(380_000), got.TotalBilling)
}

func TestInvoiceTotals(t *testing.T) {
	refs := []model.InvoiceReference{
		{ContractID: uuid.New(), Amount: 1_000_000, SupportEnabled: true},
		{ContractID: uuid.New(), Amount: 500_000, SupportEnabled: false},
	}

	t.Run("contractor direction", func(t *testing.T) {
		totals := InvoiceTotals(model.InvoiceDirectionContractor, refs, eight)
		assert.Equal(t, int64(1_500_000), totals.Base)
		assert.Equal(t, int64(80_000), totals.Fee)
		assert.Equal(t, int64(1_420_000), totals.Total)
		assert.Equal(t, totals.Base-totals.Fee, totals.Total)
		assert.Equal(t, WithholdingTax(1_420_000), totals.SystemFee)
	})

	t.Run("operator direction sums both fees", func(t *testing.T) {
		totals := InvoiceTotals(model.InvoiceDirectionOperator, refs, eight)
		assert.Equal(t, int64(1_500_000), totals.Base)
		assert.Equal(t, int64(80_000), totals.Fee)
		assert.Equal(t, int64(450_000), totals.SystemFee)
		assert.Equal(t, int64(530_000), totals.Total)
	})
}

func TestReconcile(t *testing.T) {
	refs := []model.InvoiceReference{{ContractID: uuid.New(), Amount: 1_000_000, SupportEnabled: true}}
	totals := InvoiceTotals(model.InvoiceDirectionContractor, refs, eight)
	invoice := model.Invoice{
		ID:             uuid.New(),
		Direction:      model.InvoiceDirectionContractor,
		SupportPercent: "8",
		BaseAmount:     totals.Base,
		FeeAmount:      totals.Fee,
		SystemFee:      totals.SystemFee,
		TotalAmount:    totals.Total,
		References:     refs,
	}

	t.Run("consistent invoice passes", func(t *testing.T) {
		assert.NoError(t, Reconcile(invoice))
	})

	t.Run("tampered total is reported", func(t *testing.T) {
		tampered := invoice
		tampered.TotalAmount++

		err := Reconcile(tampered)
		require.Error(t, err)
		var integrity *IntegrityError
		require.ErrorAs(t, err, &integrity)
		require.Len(t, integrity.Mismatches, 1)
		assert.Equal(t, "total_amount", integrity.Mismatches[0].Field)
		assert.Equal(t, invoice.TotalAmount, integrity.Mismatches[0].Expected)
	})

	t.Run("changed support percent is reported", func(t *testing.T) {
		other := invoice
		other.SupportPercent = "10"
		assert.Error(t, Reconcile(other))
	})

	t.Run("unparsable percent is reported", func(t *testing.T) {
		other := invoice
		other.SupportPercent = "abc"
		assert.Error(t, Reconcile(other))
	})
}

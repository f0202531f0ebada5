package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/subcontract-billing/internal/model"
)

func TestGenerate(t *testing.T) {
	project := uuid.New()
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, direction := range []model.InvoiceDirection{model.InvoiceDirectionContractor, model.InvoiceDirectionOperator} {
		t.Run(string(direction), func(t *testing.T) {
			content, err := NewGenerator(nil).Generate(model.InvoiceDocument{
				Invoice: model.Invoice{
					ID: uuid.New(), Direction: direction, BillingYear: 2025, BillingMonth: 3,
					SupportPercent: "8", BaseAmount: 1_000_000, FeeAmount: 80_000,
					SystemFee: 93_932, TotalAmount: 920_000, Status: model.InvoiceStatusIssued,
					IssueDate: day, DueDate: day.AddDate(0, 0, 30),
					References: []model.InvoiceReference{{ProjectID: project, Amount: 1_000_000, SupportEnabled: true, CompletionDate: day}},
				},
				PartyName: "Sato Doboku",
				Projects:  map[uuid.UUID]string{project: "Drainage works"},
			})
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
		})
	}
}

func TestFormatYen(t *testing.T) {
	cases := map[int64]string{
		0:         "JPY 0",
		999:       "JPY 999",
		1_000:     "JPY 1,000",
		826_068:   "JPY 826,068",
		1_000_000: "JPY 1,000,000",
		-93_932:   "JPY -93,932",
	}
	for amount, want := range cases {
		assert.Equal(t, want, formatYen(amount))
	}
}

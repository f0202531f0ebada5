package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/subcontract-billing/internal/model"
)

const utf8FontName = "DocumentFont"

// Generator renders invoices as A4 documents. Without a UTF-8 font the core
// Helvetica font is used and text is transliterated to cp1252.
type Generator struct {
	font []byte
}

func NewGenerator(font []byte) *Generator {
	return &Generator{font: font}
}

type writer struct {
	pdf      *gofpdf.Fpdf
	fontName string
	tr       func(string) string
}

func (g *Generator) newWriter() *writer {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	w := &writer{pdf: pdf, fontName: "Helvetica", tr: pdf.UnicodeTranslatorFromDescriptor("")}
	if len(g.font) > 0 {
		pdf.AddUTF8FontFromBytes(utf8FontName, "", g.font)
		pdf.AddUTF8FontFromBytes(utf8FontName, "B", g.font)
		w.fontName = utf8FontName
		w.tr = func(s string) string { return s }
	}
	return w
}

func (w *writer) font(style string, size float64) {
	w.pdf.SetFont(w.fontName, style, size)
}

func (w *writer) line(height float64, text, align string) {
	w.pdf.CellFormat(0, height, w.tr(text), "", 1, align, false, 0, "")
}

func (g *Generator) Generate(doc model.InvoiceDocument) ([]byte, error) {
	w := g.newWriter()
	invoice := doc.Invoice

	w.font("B", 14)
	w.line(10, title(invoice.Direction), "C")

	w.font("", 10)
	w.line(6, fmt.Sprintf("Invoice %s", invoice.ID.String()), "C")
	w.line(6, fmt.Sprintf("Billing period %04d-%02d, issued %s, due %s",
		invoice.BillingYear, invoice.BillingMonth, formatDate(invoice.IssueDate), formatDate(invoice.DueDate)), "C")
	w.pdf.Ln(4)

	w.font("B", 11)
	w.line(6, partyLabel(invoice.Direction), "L")
	w.font("", 10)
	w.line(5, safeValue(doc.PartyName), "L")
	w.line(5, fmt.Sprintf("Status: %s", invoice.Status), "L")
	w.pdf.Ln(4)

	w.font("B", 12)
	w.line(8, "Contracts", "L")
	headers := []string{"Completed", "Project", "Amount", "Support"}
	colWidths := []float64{30, 90, 35, 25}
	w.tableRow(headers, colWidths, true)
	for _, ref := range invoice.References {
		w.tableRow([]string{
			formatDate(ref.CompletionDate),
			projectTitle(doc.Projects, ref.ProjectID),
			formatYen(ref.Amount),
			yesNo(ref.SupportEnabled),
		}, colWidths, false)
	}
	w.pdf.Ln(4)

	w.font("", 11)
	for _, row := range summaryRows(invoice) {
		w.line(6, fmt.Sprintf("%s: %s", row.label, formatYen(row.amount)), "R")
	}

	var buf bytes.Buffer
	if err := w.pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type summaryRow struct {
	label  string
	amount int64
}

func summaryRows(invoice model.Invoice) []summaryRow {
	if invoice.Direction == model.InvoiceDirectionOperator {
		return []summaryRow{
			{"Contract base", invoice.BaseAmount},
			{"System fee (30%)", invoice.SystemFee},
			{fmt.Sprintf("Support fee (%s%%)", invoice.SupportPercent), invoice.FeeAmount},
			{"Total due", invoice.TotalAmount},
		}
	}
	return []summaryRow{
		{"Contract base", invoice.BaseAmount},
		{fmt.Sprintf("Support fee (%s%%)", invoice.SupportPercent), invoice.FeeAmount},
		{"Subtotal", invoice.TotalAmount},
		{"Withholding tax", invoice.SystemFee},
		{"Payable", invoice.Payable()},
	}
}

func (w *writer) tableRow(cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	w.font(style, 10)
	for i, col := range cols {
		align := "L"
		if i == 2 {
			align = "R"
		}
		w.pdf.CellFormat(widths[i], 8, w.tr(col), "1", 0, align, false, 0, "")
	}
	w.pdf.Ln(-1)
}

func title(direction model.InvoiceDirection) string {
	if direction == model.InvoiceDirectionOperator {
		return "INVOICE (platform service)"
	}
	return "INVOICE (contractor)"
}

func partyLabel(direction model.InvoiceDirection) string {
	if direction == model.InvoiceDirectionOperator {
		return "Bill to"
	}
	return "Payee"
}

func projectTitle(titles map[uuid.UUID]string, id uuid.UUID) string {
	if name := strings.TrimSpace(titles[id]); name != "" {
		return name
	}
	return id.String()
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

// formatYen groups thousands: 1234567 -> "JPY 1,234,567".
func formatYen(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return "JPY " + sign + b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

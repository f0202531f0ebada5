package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/nurpe/subcontract-billing/internal/model"
)

const amountFormat = "#,##0"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate writes a summary sheet with one row per invoice followed by one
// sheet per invoice listing the contracts it bills.
func (g *Generator) Generate(report model.InvoiceReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	summarySheet := "Summary"
	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	styles, err := newStyles(file)
	if err != nil {
		return nil, err
	}
	if err := g.writeSummary(file, summarySheet, report, styles); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, invoice := range report.Invoices {
		sheetName := buildSheetName(report.PartyNames[invoice.PartyID], invoice.PartyID, usedNames)
		usedNames[sheetName] = struct{}{}

		if _, err := file.NewSheet(sheetName); err != nil {
			return nil, err
		}
		if err := g.writeDetail(file, sheetName, report, invoice, styles); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type styles struct {
	header int
	amount int
}

func newStyles(file *excelize.File) (styles, error) {
	header, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return styles{}, err
	}
	format := amountFormat
	amount, err := file.NewStyle(&excelize.Style{CustomNumFmt: &format})
	if err != nil {
		return styles{}, err
	}
	return styles{header: header, amount: amount}, nil
}

// sheetWriter keeps the first excelize error so a long run of cell writes can
// be checked once.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) set(cell string, value interface{}) {
	if w.err == nil {
		w.err = w.file.SetCellValue(w.sheet, cell, value)
	}
}

func (w *sheetWriter) setAt(col, row int, value interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.set(cell, value)
}

func (w *sheetWriter) style(from, to string, style int) {
	if w.err == nil {
		w.err = w.file.SetCellStyle(w.sheet, from, to, style)
	}
}

func (w *sheetWriter) width(from, to string, width float64) {
	if w.err == nil {
		w.err = w.file.SetColWidth(w.sheet, from, to, width)
	}
}

func (w *sheetWriter) header(row int, headers []string, style int) {
	for i, header := range headers {
		w.setAt(i+1, row, header)
	}
	if w.err != nil {
		return
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	last, err := excelize.CoordinatesToCellName(len(headers), row)
	if err != nil {
		w.err = err
		return
	}
	w.style(first, last, style)
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.InvoiceReport, st styles) error {
	w := &sheetWriter{file: file, sheet: sheet}

	w.set("A1", "Direction")
	w.set("B1", string(report.Direction))
	w.set("A2", "Billing period")
	w.set("B2", fmt.Sprintf("%04d-%02d", report.Year, report.Month))
	w.set("A3", "Period start")
	w.set("B3", formatDate(report.PeriodStart))
	w.set("A4", "Period end")
	w.set("B4", formatDate(report.PeriodEnd))
	w.set("A5", "Invoices")
	w.set("B5", len(report.Invoices))

	tableRow := 7
	w.header(tableRow, []string{
		partyLabel(report.Direction), "Status", "Contracts", "Base", "Support fee", "System fee", "Total", "Payable", "Due date",
	}, st.header)

	var total model.Invoice
	for i, invoice := range report.Invoices {
		row := tableRow + 1 + i
		w.set(fmt.Sprintf("A%d", row), partyName(report.PartyNames, invoice.PartyID))
		w.set(fmt.Sprintf("B%d", row), string(invoice.Status))
		w.set(fmt.Sprintf("C%d", row), len(invoice.References))
		w.set(fmt.Sprintf("D%d", row), invoice.BaseAmount)
		w.set(fmt.Sprintf("E%d", row), invoice.FeeAmount)
		w.set(fmt.Sprintf("F%d", row), invoice.SystemFee)
		w.set(fmt.Sprintf("G%d", row), invoice.TotalAmount)
		w.set(fmt.Sprintf("H%d", row), invoice.Payable())
		w.set(fmt.Sprintf("I%d", row), formatDate(invoice.DueDate))

		total.BaseAmount += invoice.BaseAmount
		total.FeeAmount += invoice.FeeAmount
		total.SystemFee += invoice.SystemFee
		total.TotalAmount += invoice.TotalAmount
	}

	totalRow := tableRow + 1 + len(report.Invoices)
	w.set(fmt.Sprintf("A%d", totalRow), "Total")
	w.set(fmt.Sprintf("D%d", totalRow), total.BaseAmount)
	w.set(fmt.Sprintf("E%d", totalRow), total.FeeAmount)
	w.set(fmt.Sprintf("F%d", totalRow), total.SystemFee)
	w.set(fmt.Sprintf("G%d", totalRow), total.TotalAmount)
	w.style(fmt.Sprintf("D%d", tableRow+1), fmt.Sprintf("H%d", totalRow), st.amount)

	w.width("A", "A", 40)
	w.width("B", "C", 12)
	w.width("D", "H", 16)
	w.width("I", "I", 14)
	return w.err
}

func (g *Generator) writeDetail(file *excelize.File, sheet string, report model.InvoiceReport, invoice model.Invoice, st styles) error {
	w := &sheetWriter{file: file, sheet: sheet}

	w.set("A1", partyLabel(report.Direction))
	w.set("B1", partyName(report.PartyNames, invoice.PartyID))
	w.set("A2", "Invoice")
	w.set("B2", invoice.ID.String())
	w.set("A3", "Issue date")
	w.set("B3", formatDate(invoice.IssueDate))
	w.set("A4", "Due date")
	w.set("B4", formatDate(invoice.DueDate))
	w.set("A5", "Support percent")
	w.set("B5", invoice.SupportPercent)
	w.set("A6", "Total")
	w.set("B6", invoice.TotalAmount)
	w.style("B6", "B6", st.amount)

	tableRow := 8
	w.header(tableRow, []string{"Completion date", "Project", "Contract", "Amount", "Support"}, st.header)

	for i, ref := range invoice.References {
		row := tableRow + 1 + i
		w.set(fmt.Sprintf("A%d", row), formatDate(ref.CompletionDate))
		w.set(fmt.Sprintf("B%d", row), ref.ProjectID.String())
		w.set(fmt.Sprintf("C%d", row), ref.ContractID.String())
		w.set(fmt.Sprintf("D%d", row), ref.Amount)
		w.set(fmt.Sprintf("E%d", row), yesNo(ref.SupportEnabled))
	}
	if len(invoice.References) > 0 {
		w.style(fmt.Sprintf("D%d", tableRow+1), fmt.Sprintf("D%d", tableRow+len(invoice.References)), st.amount)
	}

	w.width("A", "A", 18)
	w.width("B", "C", 38)
	w.width("D", "E", 14)
	return w.err
}

func partyLabel(direction model.InvoiceDirection) string {
	if direction == model.InvoiceDirectionOperator {
		return "Organization"
	}
	return "Contractor"
}

func partyName(names map[uuid.UUID]string, id uuid.UUID) string {
	if name := strings.TrimSpace(names[id]); name != "" {
		return name
	}
	return id.String()
}

func buildSheetName(name string, id uuid.UUID, used map[string]struct{}) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = id.String()
	}
	base = sanitizeSheetName(base)

	if len([]rune(base)) > 31 {
		base = string([]rune(base)[:31])
	}

	candidate := base
	counter := 2
	for {
		if _, exists := used[candidate]; !exists {
			return candidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := []rune(base)
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		candidate = string(trimmed) + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = strings.TrimSpace(replacer.Replace(value))
	if value == "" {
		return "Invoice"
	}
	return value
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// file: internals/features/finance/invoices/export/export.go
package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"dormitory_backend/internals/features/finance/invoices/model"
	helper "dormitory_backend/internals/helpers"
)

const (
	SummarySheet = "summary"
	ItemsSheet   = "items"
	dateLayout   = "2006-01-02"
)

func owner(inv *model.Invoice) string {
	if inv.InvoiceStudentProfileID != nil {
		return fmt.Sprintf("student %d", *inv.InvoiceStudentProfileID)
	}
	if inv.InvoiceRoomID != nil {
		return fmt.Sprintf("room %d", *inv.InvoiceRoomID)
	}
	return "-"
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		_ = f.SetCellValue(sheet, cell(i+1, row), v)
	}
}

// PeriodXLSX renders one period's invoices: a summary sheet with one row
// per invoice and period totals, and an items sheet with every line.
func PeriodXLSX(p model.Period, invoices []model.Invoice) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(ItemsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(SummarySheet, "A1", fmt.Sprintf("Invoices %04d-%02d", p.Year, p.Month))
	setRow(f, SummarySheet, 3, "Invoice", "Owner", "Source", "Status", "Due date", "Total", "Paid", "Outstanding")
	for i := range invoices {
		inv := &invoices[i]
		setRow(f, SummarySheet, i+4,
			inv.InvoiceID, owner(inv), string(inv.InvoiceSource), string(inv.InvoiceStatus),
			inv.InvoiceDueDate.Format(dateLayout),
			money(inv.InvoiceTotalAmount), money(inv.InvoicePaidAmount), money(inv.Outstanding()))
	}

	total := lo.Reduce(invoices, func(acc decimal.Decimal, inv model.Invoice, _ int) decimal.Decimal {
		return acc.Add(inv.InvoiceTotalAmount)
	}, decimal.Zero)
	paid := lo.Reduce(invoices, func(acc decimal.Decimal, inv model.Invoice, _ int) decimal.Decimal {
		return acc.Add(inv.InvoicePaidAmount)
	}, decimal.Zero)
	last := len(invoices) + 5
	setRow(f, SummarySheet, last, "Total", "", "", "", "", money(total), money(paid), money(total.Sub(paid)))

	setRow(f, ItemsSheet, 1, "Invoice", "Type", "Description", "Amount")
	row := 2
	for _, inv := range invoices {
		for _, it := range inv.Items {
			setRow(f, ItemsSheet, row, inv.InvoiceID, string(it.InvoiceItemType), it.InvoiceItemDescription, money(it.InvoiceItemAmount))
			row++
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// InvoicePDF renders a one-page invoice. Core PDF fonts are Latin-1 only,
// so free text is folded to ASCII.
func InvoicePDF(inv *model.Invoice) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Invoice #%d", inv.InvoiceID))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	lines := []string{
		"Owner: " + owner(inv),
		fmt.Sprintf("Period: %04d-%02d", inv.InvoiceYear, inv.InvoiceMonth),
		"Issued: " + inv.InvoiceIssueDate.Format(dateLayout),
		"Due: " + inv.InvoiceDueDate.Format(dateLayout),
		"Payment deadline: " + inv.InvoicePaymentDeadline.Format(dateLayout),
		"Status: " + string(inv.InvoiceStatus),
	}
	for _, l := range lines {
		pdf.Cell(0, 6, l)
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(105, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, it := range inv.Items {
		pdf.CellFormat(35, 6, string(it.InvoiceItemType), "1", 0, "L", false, 0, "")
		pdf.CellFormat(105, 6, helper.ASCIIFold(it.InvoiceItemDescription, 0), "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, it.InvoiceItemAmount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Total: "+inv.InvoiceTotalAmount.StringFixed(2))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Paid: "+inv.InvoicePaidAmount.StringFixed(2))
	pdf.Ln(5)
	pdf.Cell(0, 6, "Outstanding: "+inv.Outstanding().StringFixed(2))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package analytics

import (
	"fmt"
	"io"

	"github.com/malwarebo/condopay/models"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const boletoSheet = "Boletos"

var boletoHeaders = []string{
	"Number", "Owner", "Unit", "Description", "Category", "Issue Date", "Due Date",
	"Amount", "Interest", "Fine", "Discount", "Total", "Status", "Channel", "Paid At",
}

// WriteBoletosXLSX writes one row per boleto. Overdue rows are highlighted.
func WriteBoletosXLSX(w io.Writer, boletos []models.BoletoView) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(boletoSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}

	for i, h := range boletoHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(boletoSheet, cell, h)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	overdueStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Color: "9A0511"}})
	if err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(boletoHeaders))
	f.SetCellStyle(boletoSheet, "A1", lastCol+"1", headerStyle)

	for i, b := range boletos {
		row := i + 2
		paidAt := ""
		if b.PaidAt != nil {
			paidAt = b.PaidAt.UTC().Format(models.DateLayout)
		}
		values := []interface{}{
			b.Number, b.OwnerName, b.OwnerUnit, b.Description, string(b.Category),
			b.IssueDate, b.DueDate,
			money(b.Amount), money(b.InterestAmount), money(b.FineAmount), money(b.DiscountAmount), money(b.Total),
			string(b.Status), string(b.PaymentChannel), paidAt,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(boletoSheet, cell, v)
		}
		if b.Status == models.BoletoStatusOverdue {
			f.SetCellStyle(boletoSheet, fmt.Sprintf("A%d", row), fmt.Sprintf("%s%d", lastCol, row), overdueStyle)
		}
	}

	f.SetActiveSheet(0)
	_, err = f.WriteTo(w)
	return err
}

// money converts a fixed-point string for a numeric spreadsheet cell.
func money(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

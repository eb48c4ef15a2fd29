package analytics

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/malwarebo/condopay/models"
)

type SlipPayee struct {
	Name   string
	City   string
	PixKey string
}

// WriteSlip renders a one-page payment slip for a boleto, with the PIX
// copy-and-paste code when a charge was generated.
func WriteSlip(w io.Writer, b models.BoletoView, payee SlipPayee) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Boleto "+b.Number, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, tr(payee.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(payee.City), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "Boleto No. "+b.Number, "B", 1, "L", false, 0, "")
	pdf.Ln(2)

	rows := [][2]string{
		{"Owner", b.OwnerName},
		{"Unit", b.OwnerUnit},
		{"Description", b.Description},
		{"Category", string(b.Category)},
		{"Issue date", b.IssueDate},
		{"Due date", b.DueDate},
		{"Status", string(b.Status)},
	}
	pdf.SetFont("Arial", "", 11)
	for _, r := range rows {
		pdf.CellFormat(40, 7, r[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, tr(r[1]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	amounts := [][2]string{
		{"Amount", b.Amount},
		{"Interest", b.InterestAmount},
		{"Fine", b.FineAmount},
		{"Discount", "-" + b.DiscountAmount},
	}
	for _, r := range amounts {
		pdf.CellFormat(60, 7, r[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 7, "R$ "+r[1], "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(60, 8, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 8, "R$ "+b.Total, "1", 1, "R", false, 0, "")
	pdf.Ln(6)

	if b.PixQRCode != "" {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, "PIX copy and paste", "", 1, "L", false, 0, "")
		pdf.SetFont("Courier", "", 8)
		pdf.MultiCell(0, 4, b.PixQRCode, "1", "L", false)
		pdf.SetFont("Arial", "", 9)
		pdf.CellFormat(0, 6, fmt.Sprintf("Key: %s  TxID: %s", payee.PixKey, b.PixTxID), "", 1, "L", false, 0, "")
	}

	if b.PaidAt != nil {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(0, 120, 0)
		pdf.CellFormat(0, 8, "PAID ON "+b.PaidAt.UTC().Format(models.DateLayout), "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("failed to render slip: %w", err)
	}
	return pdf.Output(w)
}

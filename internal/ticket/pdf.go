package ticket

import (
	"bytes"
	"fmt"

	"github.com/phpdave11/gofpdf"
)

// RenderReceiptPDF lays the receipt out on an 80mm roll-sized page for
// preview and archiving.
func RenderReceiptPDF(r Receipt) (*bytes.Buffer, error) {
	height := 120.0 + float64(len(r.Items))*10
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(5, 5, 5)
	pdf.SetAutoPageBreak(false, 5)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 6, tr(r.BusinessName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 8)
	if r.BusinessAddress != "" {
		pdf.MultiCell(0, 4, tr(r.BusinessAddress), "", "C", false)
	}

	pdf.Ln(2)
	pdf.CellFormat(0, 4, "Date: "+r.Time.Format(DateLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 4, tr("Table: "+r.TableName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 4, fmt.Sprintf("Order #%d", r.OrderID), "B", 1, "L", false, 0, "")

	pdf.Ln(1)
	for _, item := range r.Items {
		pdf.SetFont("Arial", "", 8)
		pdf.CellFormat(0, 4, tr(fmt.Sprintf("%dx %s", item.Quantity, item.Name)), "", 1, "L", false, 0, "")
		pdf.CellFormat(45, 4, fmt.Sprintf("    %s x %d", Money(item.UnitPrice), item.Quantity), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 4, Money(item.Total()), "", 1, "R", false, 0, "")
	}

	bd := r.Breakdown
	pdf.Ln(1)
	pdf.CellFormat(0, 1, "", "T", 1, "L", false, 0, "")
	row := func(label, amount string) {
		pdf.CellFormat(45, 5, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, amount, "", 1, "R", false, 0, "")
	}
	row("Subtotal:", Money(bd.Subtotal))
	if bd.DiscountRate > 0 {
		row(fmt.Sprintf("Discount (%s):", Percent(bd.DiscountRate)), "-"+Money(bd.Discount))
	}
	row(fmt.Sprintf("Tax (%s):", Percent(bd.TaxRate)), Money(bd.Tax))
	if bd.GratuityRate > 0 {
		row(fmt.Sprintf("Gratuity (%s):", Percent(bd.GratuityRate)), Money(bd.Gratuity))
	}
	pdf.SetFont("Arial", "B", 10)
	row("TOTAL:", Money(bd.Total))

	pdf.Ln(3)
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(0, 4, closingMessage, "", 1, "C", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

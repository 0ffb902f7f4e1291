package ticket

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"tableside-pos/internal/escpos"
	"tableside-pos/internal/order"
	"tableside-pos/internal/pricing"
)

const (
	ReceiptWidth       = 40
	StationHeaderWidth = 48
	PrinterWidth       = 42
	DateLayout         = "01/02/2006 15:04"
	closingMessage     = "Thank you for your visit!"
)

type Item struct {
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

func (i Item) Total() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Receipt is the customer-facing document for one table.
type Receipt struct {
	OrderID         int64
	BusinessName    string
	BusinessAddress string
	TableName       string
	Time            time.Time
	Items           []Item
	Breakdown       pricing.Breakdown
}

// ItemsFrom lists the ORDERED lines followed by the unsent cart entries.
func ItemsFrom(lines []order.Line, entries []order.MenuLine) []Item {
	items := make([]Item, 0, len(lines)+len(entries))
	for _, line := range lines {
		if line.Active() {
			items = append(items, Item{Name: line.Name, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
		}
	}
	for _, e := range entries {
		items = append(items, Item{Name: e.Name, Quantity: e.Quantity, UnitPrice: e.UnitPrice})
	}
	return items
}

func FormatCustomerReceipt(r Receipt) string {
	var b strings.Builder
	rule := strings.Repeat("=", ReceiptWidth)

	writeLine(&b, Center(r.BusinessName, ReceiptWidth))
	writeLine(&b, Center(r.BusinessAddress, ReceiptWidth))
	writeLine(&b, rule)
	writeLine(&b, "Date: "+r.Time.Format(DateLayout))
	writeLine(&b, "Table: "+r.TableName)
	writeLine(&b, fmt.Sprintf("Order #%d", r.OrderID))
	writeLine(&b, rule)

	for _, item := range r.Items {
		writeLine(&b, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
		writeLine(&b, fmt.Sprintf("    %s x %d = %s", Money(item.UnitPrice), item.Quantity, Money(item.Total())))
	}

	bd := r.Breakdown
	writeLine(&b, strings.Repeat("-", ReceiptWidth))
	writeLine(&b, FormatLine("Subtotal:", Money(bd.Subtotal)))
	if bd.DiscountRate > 0 {
		writeLine(&b, FormatLine(fmt.Sprintf("Discount (%s):", Percent(bd.DiscountRate)), "-"+Money(bd.Discount)))
	}
	writeLine(&b, FormatLine(fmt.Sprintf("Tax (%s):", Percent(bd.TaxRate)), Money(bd.Tax)))
	if bd.GratuityRate > 0 {
		writeLine(&b, FormatLine(fmt.Sprintf("Gratuity (%s):", Percent(bd.GratuityRate)), Money(bd.Gratuity)))
	}
	writeLine(&b, rule)
	writeLine(&b, FormatLine("TOTAL:", Money(bd.Total)))
	writeLine(&b, rule)
	writeLine(&b, "")
	writeLine(&b, Center(closingMessage, ReceiptWidth))
	return b.String()
}

// Meta is the header data of a station ticket.
type Meta struct {
	TableName string
	OrderID   int64
	Time      time.Time
}

func FormatStationTicket(t Ticket, meta Meta) string {
	var b strings.Builder
	rule := strings.Repeat("=", ReceiptWidth)

	writeLine(&b, Center(fmt.Sprintf("*** %s ORDER ***", t.Station), StationHeaderWidth))
	writeLine(&b, rule)
	writeLine(&b, "")
	writeLine(&b, Center("Table: "+meta.TableName, StationHeaderWidth))
	writeLine(&b, "")
	writeLine(&b, "Time: "+meta.Time.Format(DateLayout))
	writeLine(&b, fmt.Sprintf("Order: #%d", meta.OrderID))
	writeLine(&b, rule)
	writeLine(&b, "")

	for _, line := range t.Lines {
		writeLine(&b, fmt.Sprintf("%dx %s", line.Quantity, line.Name))
		for _, opt := range strings.Split(line.Options, "\n") {
			if strings.TrimSpace(opt) != "" {
				writeLine(&b, "   "+opt)
			}
		}
		if strings.TrimSpace(line.Memo) != "" {
			writeLine(&b, fmt.Sprintf("   [NOTE: %s]", line.Memo))
		}
		writeLine(&b, "")
	}

	writeLine(&b, rule)
	return b.String()
}

// Center left-pads text to sit in the middle of width. Text at or over width
// is returned unchanged; the right side is never padded.
func Center(text string, width int) string {
	n := utf8.RuneCountInString(text)
	if n >= width {
		return text
	}
	return strings.Repeat(" ", (width-n)/2) + text
}

// FormatLine right-aligns right against the printer width. The left side is
// measured in printer bytes. When the two do not fit on one row, right moves
// to its own right-justified row.
func FormatLine(left, right string) string {
	rightLen := utf8.RuneCountInString(right)
	pad := PrinterWidth - escpos.Width(left) - rightLen
	if pad > 0 {
		return left + strings.Repeat(" ", pad) + right
	}
	indent := PrinterWidth - rightLen
	if indent < 0 {
		indent = 0
	}
	return left + "\n" + strings.Repeat(" ", indent) + right
}

// Money renders a dollar amount with two decimals, rounding half away from zero.
func Money(amount float64) string {
	return "$" + decimal.NewFromFloat(amount).StringFixed(2)
}

// Percent renders a rate in [0,1] as a percentage with one decimal.
func Percent(rate float64) string {
	return decimal.NewFromFloat(rate).Mul(decimal.NewFromInt(100)).StringFixed(1) + "%"
}

func writeLine(b *strings.Builder, s string) {
	b.WriteString(s)
	b.WriteByte('\n')
}

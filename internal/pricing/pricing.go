package pricing

import (
	"tableside-pos/internal/cart"
	"tableside-pos/internal/order"
	"tableside-pos/internal/rates"
)

// Breakdown is derived on demand and never stored. Amounts are unrounded.
type Breakdown struct {
	Subtotal     float64 `json:"subtotal"`
	Discount     float64 `json:"discount"`
	DiscountRate float64 `json:"discountRate"`
	Tax          float64 `json:"tax"`
	TaxRate      float64 `json:"taxRate"`
	TaxName      string  `json:"taxName,omitempty"`
	Gratuity     float64 `json:"gratuity"`
	GratuityRate float64 `json:"gratuityRate"`
	Total        float64 `json:"total"`
}

func (b Breakdown) AfterDiscount() float64 {
	return b.Subtotal - b.Discount
}

// Calculate prices the ORDERED lines plus the cart entries. Lines must already
// carry their staged edits. Tax and gratuity are both taken off the discounted
// subtotal.
func Calculate(lines []order.Line, entries []cart.Entry, r rates.Selection) Breakdown {
	var subtotal float64
	for _, line := range lines {
		if line.Active() {
			subtotal += line.Amount()
		}
	}
	for _, e := range entries {
		subtotal += e.Amount()
	}
	return FromSubtotal(subtotal, r)
}

func FromSubtotal(subtotal float64, r rates.Selection) Breakdown {
	discount := subtotal * r.Discount
	after := subtotal - discount
	tax := after * r.Tax.Rate
	gratuity := after * r.Gratuity
	return Breakdown{
		Subtotal:     subtotal,
		Discount:     discount,
		DiscountRate: r.Discount,
		Tax:          tax,
		TaxRate:      r.Tax.Rate,
		TaxName:      r.Tax.Name,
		Gratuity:     gratuity,
		GratuityRate: r.Gratuity,
		Total:        after + tax + gratuity,
	}
}

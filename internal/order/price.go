package order

import "github.com/shopspring/decimal"

// PricePlaces is the precision unit prices are stored with.
const PricePlaces = 4

// RoundPrice rounds v to PricePlaces, half away from zero.
func RoundPrice(v float64) float64 {
	return decimal.NewFromFloat(v).Round(PricePlaces).InexactFloat64()
}

// SamePrice compares two unit prices at stored precision, so a price read
// back from the store equals the one that was written.
func SamePrice(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(PricePlaces).Equal(decimal.NewFromFloat(b).Round(PricePlaces))
}

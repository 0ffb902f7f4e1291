package utils

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func NumericToFloat64(value pgtype.Numeric) float64 {
	if !value.Valid {
		return 0
	}
	f, err := value.Float64Value()
	if err == nil && f.Valid {
		return f.Float64
	}
	// fall back to the exact digits
	if value.Int == nil {
		return 0
	}
	out, _ := decimal.NewFromBigInt(value.Int, value.Exp).Float64()
	return out
}

// Float64ToNumeric stores v with the given number of decimal places.
func Float64ToNumeric(v float64, places int32) pgtype.Numeric {
	d := decimal.NewFromFloat(v).Round(places)
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

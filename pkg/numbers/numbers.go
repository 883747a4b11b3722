// Package numbers bridges exact big.Rat arithmetic and the fixed-point
// decimals used on persisted amounts. Fractions stay rational for as long
// as possible and are rounded half-up only at the edges, when a quantity
// or amount is written to a document entry.
package numbers

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// One is the rational 1/1.
func One() *big.Rat { return big.NewRat(1, 1) }

// IsOne reports whether r equals 1 exactly.
func IsOne(r *big.Rat) bool { return r.Cmp(One()) == 0 }

// RatToDecimal rounds r half-up to the given number of decimal places.
func RatToDecimal(r *big.Rat, places int32) decimal.Decimal {
	num := decimal.NewFromBigInt(r.Num(), 0)
	den := decimal.NewFromBigInt(r.Denom(), 0)
	return num.DivRound(den, places)
}

// MulRat multiplies d by r exactly and rounds the product half-up to the
// given number of decimal places.
func MulRat(d decimal.Decimal, r *big.Rat, places int32) decimal.Decimal {
	num := d.Mul(decimal.NewFromBigInt(r.Num(), 0))
	den := decimal.NewFromBigInt(r.Denom(), 0)
	return num.DivRound(den, places)
}

// DecimalToRat converts d to an exact rational.
func DecimalToRat(d decimal.Decimal) *big.Rat {
	exp := d.Exponent()
	coeff := new(big.Rat).SetInt(d.Coefficient())
	if exp == 0 {
		return coeff
	}
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(absInt64(int64(exp))), nil)
	scale := new(big.Rat).SetInt(pow)
	if exp > 0 {
		return coeff.Mul(coeff, scale)
	}
	return coeff.Quo(coeff, scale)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

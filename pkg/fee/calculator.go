package fee

import (
	"errors"

	"github.com/shopspring/decimal"
)

// NaturalScale leaves the fee at the full precision of amount * rate.
const NaturalScale int32 = -1

// AmountScale is the number of fractional digits an order total may carry.
const AmountScale int32 = 2

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrRateOutOfRange = errors.New("rate must be within [0, 1]")
)

// Split is the result of applying a fee rate to an amount.
// Fee + SettleAmount always equals the original amount.
type Split struct {
	Fee          decimal.Decimal
	SettleAmount decimal.Decimal
}

// Calculator derives the platform fee and the remaining settle amount.
type Calculator struct {
	scale int32
}

// NewCalculator builds a calculator. A negative scale keeps natural precision;
// otherwise the fee is rounded half-to-even to scale decimal places.
func NewCalculator(scale int32) Calculator {
	if scale < 0 {
		scale = NaturalScale
	}
	return Calculator{scale: scale}
}

// Scale returns the configured rounding scale, or NaturalScale.
func (c Calculator) Scale() int32 {
	return c.scale
}

// Calculate returns fee = amount * rate and settle = amount - fee.
func (c Calculator) Calculate(amount, rate decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	fee := amount.Mul(rate)
	if c.scale >= 0 {
		fee = fee.RoundBank(c.scale)
	}
	return fee, amount.Sub(fee)
}

// Split validates its inputs and wraps Calculate.
func (c Calculator) Split(amount, rate decimal.Decimal) (Split, error) {
	if amount.IsNegative() {
		return Split{}, ErrNegativeAmount
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return Split{}, ErrRateOutOfRange
	}
	feeAmount, settle := c.Calculate(amount, rate)
	return Split{Fee: feeAmount, SettleAmount: settle}, nil
}

// HasScale reports whether d needs no more than scale fractional digits.
// Trailing zeros do not count.
func HasScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Truncate(scale))
}

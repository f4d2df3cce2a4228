// Package pricing computes the charge breakdown of a course purchase.
package pricing

import "github.com/shopspring/decimal"

type Rates struct {
	TaxRate         decimal.Decimal
	PlatformFeeRate decimal.Decimal
}

type Breakdown struct {
	BasePrice       int64
	TaxAmount       int64
	PlatformFee     int64
	MentorNetAmount int64
	TotalAmount     int64
}

// Calculate derives tax and platform fee independently from basePrice, each
// rounded half-up to a whole currency unit. Negative prices are treated as 0.
func Calculate(basePrice int64, rates Rates) Breakdown {
	if basePrice < 0 {
		basePrice = 0
	}

	base := decimal.NewFromInt(basePrice)
	tax := roundHalfUp(base.Mul(rates.TaxRate))
	fee := roundHalfUp(base.Mul(rates.PlatformFeeRate))

	return Breakdown{
		BasePrice:       basePrice,
		TaxAmount:       tax,
		PlatformFee:     fee,
		MentorNetAmount: basePrice - fee,
		TotalAmount:     basePrice + tax,
	}
}

// decimal.Round rounds half away from zero, which is half-up for the non-negative amounts handled here.
func roundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

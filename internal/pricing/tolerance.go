package pricing

import (
	"math"

	"github.com/Cryptoprojectsfun/stocktrade/internal/errors"
)

// Deviation returns the absolute percentage difference between the quoted
// and execution price, relative to the quote.
func Deviation(quotedPrice, executionPrice float64) float64 {
	return math.Abs(quotedPrice-executionPrice) / quotedPrice * 100
}

// CheckTolerance rejects an execution price that deviates from the quote by
// more than tolerancePct percent. Exactly at the boundary passes. A quote
// that is not strictly positive cannot be compared against and fails as an
// invalid quote.
func CheckTolerance(symbol string, quotedPrice, executionPrice, tolerancePct float64) error {
	if quotedPrice <= 0 {
		return errors.NewInvalidQuoteError(symbol, quotedPrice)
	}

	if Deviation(quotedPrice, executionPrice) > tolerancePct {
		return errors.NewToleranceExceededError(symbol, quotedPrice, executionPrice, tolerancePct)
	}

	return nil
}

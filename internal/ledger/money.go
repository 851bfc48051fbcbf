// Package ledger implements the fee computation core: late-fee
// assessment, discount resolution, carry-forward netting and payment
// validation. Every function is pure; the caller supplies the clock.
package ledger

import "math"

// Round normalises a monetary value to the currency's minor-unit
// precision using banker's rounding.
func Round(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

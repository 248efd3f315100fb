package utils

import "math"

// AmountTolerance is the comparison tolerance for monetary amounts
const AmountTolerance = 0.01

// Round2 rounds a monetary amount to 2 decimal places
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// AmountsEqual reports whether two monetary amounts match within tolerance
func AmountsEqual(a, b float64) bool {
	return math.Abs(a-b) <= AmountTolerance
}

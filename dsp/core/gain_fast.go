//go:build fastmath

package core

import "github.com/meko-christian/algo-approx"

// ln10Over20 converts a dB value into the natural-log exponent of its gain.
const ln10Over20 = 0.115129254649702284200899572734

// dbToGain computes 10^(db/20) as e^(db*ln(10)/20) with a fast exp.
func dbToGain(db float64) float64 {
	return approx.FastExp(db * ln10Over20)
}

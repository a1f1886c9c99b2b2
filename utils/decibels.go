// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// LinearToDecibels returns 20·log10(x); zero and negative magnitudes map to
// -Inf.
func LinearToDecibels(x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(x)
}

func DecibelsToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

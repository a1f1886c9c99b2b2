// SPDX-License-Identifier: EPL-2.0

package utils

// Float32ToInt16 clamps x to [-1, 1] and scales it by 32767, so the range
// maps symmetrically.
func Float32ToInt16(x float32) int16 {
	x = min(max(x, -1), 1)
	return int16(x * 32767)
}

// Float32sToInt16 converts src into dst and returns the number converted,
// the shorter of the two lengths.
func Float32sToInt16(dst []int16, src []float32) int {
	n := min(len(dst), len(src))
	for i, x := range src[:n] {
		dst[i] = Float32ToInt16(x)
	}
	return n
}

// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")
	ErrInvalidRatio   = errors.New("resampling ratio must be positive and finite")
	ErrChannelLayout  = errors.New("planar channels differ in length")

	errStarved = errors.New("source starved")
)

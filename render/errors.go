// SPDX-License-Identifier: EPL-2.0

package render

import "errors"

var (
	ErrNilResult       = errors.New("nil build result")
	ErrUnsupportedKind = errors.New("node kind has no renderer")
	ErrChannelCount    = errors.New("channel count exceeds maximum")
)

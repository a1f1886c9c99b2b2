// SPDX-License-Identifier: EPL-2.0

package session

import "errors"

var (
	ErrClosed        = errors.New("session closed")
	ErrNilResult     = errors.New("nil build result")
	ErrChannels      = errors.New("invalid output channel count")
	ErrDeviceRate    = errors.New("invalid device sample rate")
	ErrNoGraph       = errors.New("no graph published")
	ErrRenderPanic   = errors.New("render panicked")
	ErrNonFinite     = errors.New("non-finite output")
	ErrUpdateRefused = errors.New("parameter update refused")
)

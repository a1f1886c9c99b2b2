// SPDX-License-Identifier: EPL-2.0

package offline

import "errors"

var (
	ErrLength       = errors.New("offline: render length must be positive")
	ErrSuspendFrame = errors.New("offline: invalid suspend frame")
	ErrNotSuspended = errors.New("offline: renderer is not suspended")
	ErrStarted      = errors.New("offline: renderer already started")
	ErrNotStarted   = errors.New("offline: renderer not started")
	ErrAborted      = errors.New("offline: render aborted")
	ErrSampleRate   = errors.New("offline: graph sample rate differs from the render's")
)

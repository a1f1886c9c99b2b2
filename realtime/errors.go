// SPDX-License-Identifier: EPL-2.0

package realtime

import (
	"errors"
	"fmt"
)

var (
	ErrDevice   = errors.New("output device error")
	ErrNoOutput = errors.New("no output opened")
	ErrOptions  = errors.New("invalid realtime options")
	errRingFull = errors.New("ring full")
)

// DeviceError reports a backend failure. It matches ErrDevice and unwraps
// to the backend's own error.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

// SPDX-License-Identifier: EPL-2.0

package graph

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGraph       = errors.New("invalid graph")
	ErrNilNode            = errors.New("nil node description")
	ErrMissingDestination = errors.New("destination node not found")
	ErrDestinationKind    = errors.New("destination node is not of kind Destination")
	ErrDanglingConnection = errors.New("connection endpoint not found")
	ErrPortOutOfRange     = errors.New("port index out of range")
	ErrParamOutOfRange    = errors.New("param index out of range")
	ErrCycle              = errors.New("cycle without a delay node")
	ErrDuplicateNode      = errors.New("duplicate node id")
	ErrUnknownKind        = errors.New("unknown node kind")
	ErrFFTSize            = errors.New("analyser fft size must be a power of two in [32, 32768]")
	ErrBufferSize         = errors.New("script processor buffer size must be a power of two in [256, 16384]")
	ErrChannelCount       = errors.New("channel count out of range")
	ErrNodeField          = errors.New("node field out of range")
	ErrSampleRate         = errors.New("sample rate out of range")

	ErrResource = errors.New("resource error")
)

// ResourceError reports a buffer or media provider a graph cannot use:
// missing from the registry, malformed, or too large. It also reports a
// node whose render state would be too large, with ID set to the node id.
type ResourceError struct {
	ID     uint64
	Reason string
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %d: %s", e.ID, e.Reason)
}

func (e *ResourceError) Unwrap() error { return ErrResource }

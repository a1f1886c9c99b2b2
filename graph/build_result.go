// SPDX-License-Identifier: EPL-2.0

package graph

import "fmt"

// Flags is the header bitset of an encoded graph.
type Flags uint32

const (
	// FlagContainsExternalResources is set when any node refers to a buffer
	// or media provider id. Bit 0 is reserved.
	FlagContainsExternalResources Flags = 1 << 1
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// BuildResult is what a session adopts, whether it came off the wire or was
// handed over in process.
type BuildResult struct {
	Flags                Flags
	SampleRate           float32
	Description          *Description
	Resources            *Registry
	AutomationEventCount int
}

// NewBuildResult validates desc and wraps it for the in-process handoff path.
// A nil resources yields an empty registry.
func NewBuildResult(desc *Description, sampleRate float32, resources *Registry) (*BuildResult, error) {
	if desc == nil {
		return nil, fmt.Errorf("%w: nil description", ErrInvalidGraph)
	}
	if !ValidSampleRate(sampleRate) {
		return nil, fmt.Errorf("%w: %w: %v", ErrInvalidGraph, ErrSampleRate, sampleRate)
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := desc.CheckStateSize(sampleRate); err != nil {
		return nil, err
	}

	if resources == nil {
		resources = NewRegistry()
	}

	var flags Flags
	if desc.UsesExternalResources() {
		flags |= FlagContainsExternalResources
	}

	return &BuildResult{
		Flags:                flags,
		SampleRate:           sampleRate,
		Description:          desc,
		Resources:            resources,
		AutomationEventCount: desc.AutomationEventCount(),
	}, nil
}

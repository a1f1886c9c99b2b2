// SPDX-License-Identifier: EPL-2.0

package session

// SuspendPolicy decides what happens to the context timeline while the
// session is suspended. Either way no node renders and no upstream frames
// are consumed.
type SuspendPolicy uint8

const (
	// SuspendFreeze stops the timeline; scheduled starts and automation
	// resume where they stopped.
	SuspendFreeze SuspendPolicy = iota
	// SuspendAdvanceTimeline keeps counting frames as if silence had been
	// rendered.
	SuspendAdvanceTimeline
)

// The suspend word packs the generation above the suspended bit.
const suspendedBit = 1

func packSuspend(suspended bool, gen uint64) uint64 {
	v := gen << 1
	if suspended {
		v |= suspendedBit
	}
	return v
}

// SetSuspended requests a suspend state. Requests carrying a generation
// older than the last accepted one are ignored and false is returned, so a
// late resume cannot undo a newer suspend.
func (s *Session) SetSuspended(suspended bool, generation uint64) bool {
	next := packSuspend(suspended, generation)
	for {
		cur := s.suspend.Load()
		if generation < cur>>1 {
			return false
		}
		if s.suspend.CompareAndSwap(cur, next) {
			log.Debugf("Session %d suspended=%v generation=%d", s.id, suspended, generation)
			return true
		}
	}
}

// Suspended reports the current request and its generation.
func (s *Session) Suspended() (bool, uint64) {
	v := s.suspend.Load()
	return v&suspendedBit != 0, v >> 1
}

// SPDX-License-Identifier: EPL-2.0

package session

import "fmt"

type NotificationKind uint8

const (
	// NotifyRenderFailed means a node panicked; the graph stays silent
	// until replaced.
	NotifyRenderFailed NotificationKind = iota + 1
	// NotifyNonFinite means a quantum contained NaN or Inf and was muted.
	NotifyNonFinite
	// NotifyUpdateRefused means a node rejected a parameter update.
	NotifyUpdateRefused
	// NotifyGraphAdopted means a pending graph became active.
	NotifyGraphAdopted
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyRenderFailed:
		return "render failed"
	case NotifyNonFinite:
		return "non-finite output"
	case NotifyUpdateRefused:
		return "update refused"
	case NotifyGraphAdopted:
		return "graph adopted"
	}
	return fmt.Sprintf("NotificationKind(%d)", uint8(k))
}

// Notification reports something the render side could not return as an
// error. Frame is the context frame of the quantum involved.
type Notification struct {
	Kind  NotificationKind
	Frame uint64
	Err   error
}

// notify never blocks: when the channel is full the notification is
// counted and dropped.
func (s *Session) notify(n Notification) {
	select {
	case s.notes <- n:
	default:
		s.droppedNotes.Add(1)
	}
}

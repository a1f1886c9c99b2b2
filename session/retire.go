// SPDX-License-Identifier: EPL-2.0

package session

import "sync/atomic"

// retired is a stack node. It is embedded in the pending record that
// displaced the stage so pushing never allocates on the render thread.
type retired struct {
	st   *stage
	next *retired
}

// retireStack is a Treiber stack: the render thread pushes, the control
// thread takes everything at once.
type retireStack struct {
	head atomic.Pointer[retired]
}

func (s *retireStack) push(r *retired) {
	for {
		old := s.head.Load()
		r.next = old
		if s.head.CompareAndSwap(old, r) {
			return
		}
	}
}

func (s *retireStack) takeAll() *retired {
	return s.head.Swap(nil)
}

// SPDX-License-Identifier: EPL-2.0

/*
Package offline renders a graph faster than real time into memory.

A Renderer is created per request and never shared. Without suspend points
it renders the requested length quantum by quantum and reports completion
once. Suspend points stop the render goroutine at a quantum boundary: an
EventSuspended carrying analyser snapshots, compressor readings and script
processor blocks is emitted and the goroutine
waits on a condition variable until Resume or Abort. Resume may hand over a
new graph, which is adopted before the next quantum is rendered.

Every render ends with exactly one EventComplete carrying a final set of
node state, including renders that were aborted or cancelled.

	r, err := offline.New(res, offline.Options{Length: 100000, SuspendAt: []uint64{50000}})
	if err != nil {
		return err
	}
	r.Start(ctx)
	for ev := range r.Events() {
		if ev.Kind == offline.EventSuspended {
			_ = r.Resume(nil)
		}
	}
	result, err := r.Wait()

Suspend frames are rounded down to a quantum boundary.
*/
package offline

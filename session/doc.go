// SPDX-License-Identifier: EPL-2.0

// Package session owns the render state of one audio context.
//
// The control side publishes graphs with SetRenderGraph and its wire and
// description variants. Publishing builds every render node up front and
// leaves the result pending; a newer pending graph replaces an unadopted
// one. The render side calls RenderOneQuantum, which adopts the pending
// graph at the quantum boundary with a single atomic swap and pushes the
// displaced graph onto a lock-free retirement stack. DrainRetired, on the
// control side, closes retired graphs. Analyser snapshots, compressor
// readings and script processor blocks are read from the graph the render
// side adopted last.
//
// Nothing on the render path blocks, allocates in steady state or returns
// an error. Failures become silence plus a Notification.
package session

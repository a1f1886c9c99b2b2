// SPDX-License-Identifier: EPL-2.0

// Package realtime runs the process-wide render loop that feeds an output
// device.
//
// A Thread renders one quantum from every registered session, sums them and
// writes the mix into a lock-free ring read by the device backend. When the
// ring has no room the loop paces itself: it sleeps for the time the device
// needs to drain a quantum, minus the average render cost, capped to a short
// slice so new work is picked up quickly. Clock, sleep and yield are
// injected so pacing can be tested without real time passing.
//
// The backend is an external collaborator behind the Device interface. It
// reads the ring through the Output handed to Device.Open.
package realtime

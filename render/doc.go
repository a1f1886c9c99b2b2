// SPDX-License-Identifier: EPL-2.0

// Package render turns a validated graph description into an executable
// graph and renders it one quantum (128 frames) at a time.
//
// Build resolves every buffer and media provider the description refers to,
// allocates one Node per graph node and fixed capacity buses, and computes
// the execution order. Render then runs without allocating: inputs fed by
// several connections are summed into per-input mix buses before the node
// sees them, parameters are evaluated as intrinsic value (automation or node
// constant) plus the sum of connected parameter inputs, and delays that sit
// on a cycle emit from their history before the rest of the graph runs and
// consume their input after it.
//
// A Graph is owned by one render goroutine at a time. Close releases side
// resources (debug mirrors) and must run on the control side once the graph
// is no longer rendered.
package render

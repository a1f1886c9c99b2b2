// SPDX-License-Identifier: EPL-2.0

// Package graph holds the declarative description of an audio-processing
// graph as it crosses from the control side to a render thread.
//
// A Description is immutable once published: control code builds a fresh one
// for every structural edit and hands it to the wire codec or directly to a
// session. Nodes are described by one struct per kind, all implementing
// NodeDescription; the Kind tag doubles as the wire type tag.
//
// # Validation
//
// Validate checks that every connection endpoint exists, that port and
// parameter indices are within the node's declared counts, that the
// destination exists and is of kind Destination, and that every cycle over
// audio-rate edges passes through a Delay node. Topology returns the
// execution order and the set of delays that break a cycle; those delays are
// split into a read phase (before the rest of the graph) and a write phase
// (after it) by the renderer, with a minimum delay of one quantum.
//
// # Resources
//
// A Registry maps buffer ids to SharedBuffers and provider ids to
// MediaProviders. It is built on the control side and treated as read-only
// once it is part of a BuildResult.
package graph

// SPDX-License-Identifier: EPL-2.0

// Package media feeds decoded audio into render graphs.
//
// A Queue is the single-producer/single-consumer hand-off between a decode
// pipeline and a media source node; it satisfies graph.MediaProvider. A
// Feeder drains any audio.Source into a Queue from its own goroutine, and
// DecodeBuffer loads a whole file into a graph.SharedBuffer for buffer
// source nodes.
package media

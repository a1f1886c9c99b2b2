// SPDX-License-Identifier: EPL-2.0

// Package wire encodes graph descriptions and their buffers into the flat,
// little-endian format used to hand a graph across a process boundary.
//
// Layout:
//
//	u32 flags | f32 sample_rate | u64 destination_node_id
//	{ u32 tag | u32 payload_size | payload }*
//
// Sections may appear in any order and unknown tags are skipped by size.
// Nodes are written in ascending id order so that equal graphs encode to
// identical bytes regardless of map iteration order.
package wire

// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MPEG-1/2 Layer III streams through
// github.com/hajimehoshi/go-mp3. Output is always stereo float32 at the
// stream's sample rate; mono files are duplicated by the decoder.
package mp3

// SPDX-License-Identifier: EPL-2.0

// Package formats wires every bundled decoder into an audio.Registry.
package formats

import (
	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/formats/aiff"
	"github.com/ik5/audrender/formats/mp3"
	"github.com/ik5/audrender/formats/vorbis"
	"github.com/ik5/audrender/formats/wav"
)

// Default returns a registry keyed by file extension without the dot.
func Default() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("aiff", aiff.Decoder{})
	r.Register("aif", aiff.Decoder{})
	return r
}

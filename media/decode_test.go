// SPDX-License-Identifier: EPL-2.0

package media

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/formats"
	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/internal/audiotest"
)

func TestDecodeBuffer(t *testing.T) {
	t.Parallel()

	var file bytes.Buffer
	require.NoError(t, wav.WriteWAV16(&file, 22050, 2, []int16{16384, -16384, 8192, -8192, 0, 0}))

	buf, err := DecodeBuffer(formats.Default(), "wav", &file)
	require.NoError(t, err)
	assert.Equal(t, float32(22050), buf.SampleRate)
	assert.Equal(t, 2, buf.ChannelCount())
	assert.Equal(t, 3, buf.Length())
	assert.Equal(t, []float32{0.5, 0.25, 0}, buf.Data[0])
	assert.Equal(t, []float32{-0.5, -0.25, 0}, buf.Data[1])
}

func TestDecodeBufferErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeBuffer(formats.Default(), "flac", bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = DecodeBuffer(formats.Default(), "wav", bytes.NewReader([]byte("nope")))
	require.ErrorIs(t, err, wav.ErrNotWavFile)

	reg := audio.NewRegistry()
	reg.Register("nil", emptyDecoder{})
	_, err = DecodeBuffer(reg, "nil", bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrEmptyMedia)
}

type emptyDecoder struct{}

func (emptyDecoder) Decode(io.Reader) (audio.Source, error) {
	return audiotest.Silence(8000, 1, 0), nil
}

// SPDX-License-Identifier: EPL-2.0

package formats

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audrender/formats/wav"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	r := Default()
	assert.Equal(t, []string{"aif", "aiff", "mp3", "ogg", "wav"}, r.Formats())

	var buf bytes.Buffer
	require.NoError(t, wav.WriteWAV16(&buf, 8000, 1, []int16{1, 2, 3}))

	dec, ok := r.Get("wav")
	require.True(t, ok)
	src, err := dec.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 8000, src.SampleRate())
}

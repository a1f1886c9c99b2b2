// SPDX-License-Identifier: EPL-2.0

package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audrender/internal/audiotest"
)

func TestFeederDeliversInOrder(t *testing.T) {
	t.Parallel()

	const frames = 1000
	src := audiotest.Ramp(48000, 2, frames, frames)
	src.StarveEvery = 4
	q := NewQueue(48000, 2, 64)

	f, err := NewFeeder(src, q)
	require.NoError(t, err)
	f.SetPoll(100 * time.Microsecond)

	done := make(chan error, 1)
	go func() { done <- RunFeeders(context.Background(), f) }()

	got := make([]float32, 0, 2*frames)
	buf := make([]float32, 37)
	deadline := time.After(5 * time.Second)
	for len(got) < 2*frames {
		select {
		case <-deadline:
			t.Fatalf("received %d samples, want %d", len(got), 2*frames)
		default:
		}
		n := q.Read(buf)
		got = append(got, buf[:n]...)
		if n == 0 {
			time.Sleep(50 * time.Microsecond)
		}
	}

	require.NoError(t, <-done)
	assert.True(t, src.Closed())
	for i := 0; i < frames; i++ {
		want := float32(i) / frames
		require.Equal(t, want, got[2*i], "frame %d left", i)
		require.Equal(t, want, got[2*i+1], "frame %d right", i)
	}
}

func TestFeederCancel(t *testing.T) {
	t.Parallel()

	// Unbounded source into a queue nobody reads.
	src := audiotest.Constant(8000, 1, -1, 0.5)
	q := NewQueue(8000, 1, 16)
	f, err := NewFeeder(src, q)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = f.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 16, q.Buffered())
	assert.True(t, src.Closed())
}

func TestFeederFormatMismatch(t *testing.T) {
	t.Parallel()

	_, err := NewFeeder(audiotest.Silence(44100, 2, 10), NewQueue(48000, 2, 16))
	require.ErrorIs(t, err, ErrFormatMismatch)

	_, err = NewFeeder(audiotest.Silence(48000, 1, 10), NewQueue(48000, 2, 16))
	require.True(t, errors.Is(err, ErrFormatMismatch))
}

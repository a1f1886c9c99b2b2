// SPDX-License-Identifier: EPL-2.0

package realtime

import (
	"fmt"
	"runtime"
	"time"

	"github.com/ik5/audrender/internal/metrics"
)

// Options configures a Thread. Zero values pick defaults.
type Options struct {
	SampleRate int
	Channels   int
	// RingLatency sizes the output ring.
	RingLatency time.Duration
	// MaxSleep caps one pacing sleep.
	MaxSleep time.Duration
	// EMAAlpha weights the newest render cost in the moving average.
	EMAAlpha float64
	// WriteRetries bounds ring write attempts after the first one fails.
	WriteRetries  uint64
	RetryInterval time.Duration

	Clock func() time.Time
	Sleep func(time.Duration)
	Yield func()

	Metrics *metrics.Metrics
}

func (o *Options) setDefaults() error {
	if o.SampleRate == 0 {
		o.SampleRate = 48000
	}
	if o.Channels == 0 {
		o.Channels = 2
	}
	if o.RingLatency == 0 {
		o.RingLatency = 40 * time.Millisecond
	}
	if o.MaxSleep == 0 {
		o.MaxSleep = 2 * time.Millisecond
	}
	if o.EMAAlpha == 0 {
		o.EMAAlpha = 0.1
	}
	if o.WriteRetries == 0 {
		o.WriteRetries = 3
	}
	if o.RetryInterval == 0 {
		o.RetryInterval = 250 * time.Microsecond
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Yield == nil {
		o.Yield = runtime.Gosched
	}
	if o.Metrics == nil {
		o.Metrics = metrics.Discard()
	}

	switch {
	case o.SampleRate < 0:
		return fmt.Errorf("%w: sample rate %d", ErrOptions, o.SampleRate)
	case o.Channels < 0:
		return fmt.Errorf("%w: %d channels", ErrOptions, o.Channels)
	case o.EMAAlpha < 0 || o.EMAAlpha > 1:
		return fmt.Errorf("%w: ema alpha %v", ErrOptions, o.EMAAlpha)
	case o.RingLatency < 0 || o.MaxSleep < 0 || o.RetryInterval < 0:
		return fmt.Errorf("%w: negative duration", ErrOptions)
	}
	return nil
}

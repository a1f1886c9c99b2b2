// SPDX-License-Identifier: EPL-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/decred/slog"
	"gopkg.in/yaml.v3"

	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/internal/logging"
	"github.com/ik5/audrender/realtime"
	"github.com/ik5/audrender/render"
)

type Config struct {
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	QuantumFrames int     `yaml:"quantum_frames"`
	RingLatencyMS int     `yaml:"ring_latency_ms"`
	Pacing        Pacing  `yaml:"pacing"`
	Media         Media   `yaml:"media"`
	Log           Log     `yaml:"log"`
	Metrics       Metrics `yaml:"metrics"`
	Debug         Debug   `yaml:"debug"`
}

type Pacing struct {
	MaxSleepMS      float64 `yaml:"max_sleep_ms"`
	EMAAlpha        float64 `yaml:"ema_alpha"`
	WriteRetries    int     `yaml:"write_retries"`
	RetryIntervalUS int     `yaml:"retry_interval_us"`
}

type Media struct {
	ControllerGain        float64 `yaml:"controller_gain"`
	MaxRatioDeviation     float64 `yaml:"max_ratio_deviation"`
	TargetFillFrames      int     `yaml:"target_fill_frames"`
	UnderrunLogIntervalMS int     `yaml:"underrun_log_interval_ms"`
}

type Log struct {
	Level string `yaml:"level"`
	// Subsystems overrides the level per subsystem tag, e.g. RTTH.
	Subsystems map[string]string `yaml:"subsystems,omitempty"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

type Debug struct {
	// MirrorDir receives one float WAV per mirrored debug sink node.
	// Empty disables mirroring.
	MirrorDir string `yaml:"mirror_dir"`
}

func Default() *Config {
	media := render.DefaultMediaOptions()
	return &Config{
		SampleRate:    48000,
		Channels:      2,
		QuantumFrames: render.Quantum,
		RingLatencyMS: 40,
		Pacing: Pacing{
			MaxSleepMS:      2,
			EMAAlpha:        0.1,
			WriteRetries:    3,
			RetryIntervalUS: 250,
		},
		Media: Media{
			ControllerGain:        media.ControllerGain,
			MaxRatioDeviation:     media.MaxRatioDeviation,
			TargetFillFrames:      media.TargetFillFrames,
			UnderrunLogIntervalMS: int(media.UnderrunLogInterval / time.Millisecond),
		},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Namespace: "audrender"},
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// YAML encodes c.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	check(c.SampleRate > 0, "sample_rate %d must be positive", c.SampleRate)
	check(c.Channels > 0 && c.Channels <= render.MaxChannels, "channels %d outside 1..%d", c.Channels, render.MaxChannels)
	check(c.QuantumFrames == render.Quantum, "quantum_frames %d must be %d", c.QuantumFrames, render.Quantum)
	check(c.RingLatencyMS > 0, "ring_latency_ms %d must be positive", c.RingLatencyMS)
	check(c.Pacing.MaxSleepMS > 0, "pacing.max_sleep_ms %v must be positive", c.Pacing.MaxSleepMS)
	check(c.Pacing.EMAAlpha > 0 && c.Pacing.EMAAlpha <= 1, "pacing.ema_alpha %v outside (0, 1]", c.Pacing.EMAAlpha)
	check(c.Pacing.WriteRetries >= 0, "pacing.write_retries %d is negative", c.Pacing.WriteRetries)
	check(c.Pacing.RetryIntervalUS > 0, "pacing.retry_interval_us %d must be positive", c.Pacing.RetryIntervalUS)
	check(c.Media.ControllerGain >= 0, "media.controller_gain %v is negative", c.Media.ControllerGain)
	check(c.Media.MaxRatioDeviation >= 0 && c.Media.MaxRatioDeviation < 1,
		"media.max_ratio_deviation %v outside [0, 1)", c.Media.MaxRatioDeviation)
	check(c.Media.TargetFillFrames > 0, "media.target_fill_frames %d must be positive", c.Media.TargetFillFrames)
	check(c.Media.UnderrunLogIntervalMS >= 0, "media.underrun_log_interval_ms %d is negative", c.Media.UnderrunLogIntervalMS)

	_, ok := slog.LevelFromString(c.Log.Level)
	check(ok, "log.level %q", c.Log.Level)
	for sub, level := range c.Log.Subsystems {
		_, ok := slog.LevelFromString(level)
		check(ok, "log.subsystems.%s level %q", sub, level)
	}
	check(!c.Metrics.Enabled || c.Metrics.Namespace != "", "metrics.namespace is required when enabled")

	return errors.Join(errs...)
}

// RealtimeOptions maps the device and pacing settings. Clock, sleep and
// metrics are left for the caller.
func (c *Config) RealtimeOptions() realtime.Options {
	return realtime.Options{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		RingLatency:   time.Duration(c.RingLatencyMS) * time.Millisecond,
		MaxSleep:      time.Duration(c.Pacing.MaxSleepMS * float64(time.Millisecond)),
		EMAAlpha:      c.Pacing.EMAAlpha,
		WriteRetries:  uint64(c.Pacing.WriteRetries),
		RetryInterval: time.Duration(c.Pacing.RetryIntervalUS) * time.Microsecond,
	}
}

func (c *Config) MediaOptions() render.MediaOptions {
	return render.MediaOptions{
		ControllerGain:      c.Media.ControllerGain,
		MaxRatioDeviation:   c.Media.MaxRatioDeviation,
		TargetFillFrames:    c.Media.TargetFillFrames,
		UnderrunLogInterval: time.Duration(c.Media.UnderrunLogIntervalMS) * time.Millisecond,
	}
}

// RenderOptions combines the media tuning with the debug mirror.
func (c *Config) RenderOptions() render.Options {
	return render.Options{Media: c.MediaOptions(), Mirrors: c.MirrorFactory()}
}

// MirrorFactory writes each mirrored debug sink to
// <mirror_dir>/<node id>-<label>.wav. It is nil when mirroring is off.
func (c *Config) MirrorFactory() render.MirrorFactory {
	dir := c.Debug.MirrorDir
	if dir == "" {
		return nil
	}
	return func(id graph.NodeID, label string, sampleRate, channels int) (render.MirrorSink, error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%d", id)
		if label != "" {
			name += "-" + filepath.Base(label)
		}
		return wav.Create(filepath.Join(dir, name+".wav"), sampleRate, channels)
	}
}

// ApplyLogging sets the default and per-subsystem levels on m.
func (c *Config) ApplyLogging(m *logging.Manager) error {
	if err := m.SetLevels(c.Log.Level); err != nil {
		return err
	}
	for sub, level := range c.Log.Subsystems {
		if err := m.SetLevel(sub, level); err != nil {
			return err
		}
	}
	return nil
}

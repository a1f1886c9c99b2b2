// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ik5/audrender"
	"github.com/ik5/audrender/audio"
	"github.com/ik5/audrender/formats"
	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/offline"
	"github.com/ik5/audrender/render"
	"github.com/ik5/audrender/session"
	"github.com/ik5/audrender/wire"
)

// graphSource names where a command's graph comes from.
type graphSource struct {
	path          string
	buffer        bool
	mediaChannels uint32
	mirror        bool
}

// loadGraph decodes the wire graph at src.path against base, or builds the
// demo graph at the configured rate when no path is given.
func loadGraph(e *env, src graphSource, base *graph.Registry) (*graph.BuildResult, error) {
	if src.path == "" {
		desc := demoGraph(demoSpec{
			channels:      uint32(e.cfg.Channels),
			rate:          float32(e.cfg.SampleRate),
			buffer:        src.buffer,
			mediaChannels: src.mediaChannels,
			mirror:        src.mirror,
		})
		return graph.NewBuildResult(desc, float32(e.cfg.SampleRate), base)
	}

	data, err := os.ReadFile(src.path)
	if err != nil {
		return nil, err
	}
	res, err := wire.DecodeWithResources(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.path, err)
	}
	e.log.Debugf("Decoded %s: %d nodes at %v Hz, flags %#x", src.path, len(res.Description.Nodes), res.SampleRate, res.Flags)
	return res, nil
}

// openSource picks a decoder by file extension.
func openSource(path string) (audio.Source, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	dec, ok := formats.Default().Get(strings.ToLower(ext))
	if !ok {
		return nil, fmt.Errorf("%w: %q", media.ErrUnknownFormat, ext)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	src, err := dec.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// loadBuffer decodes path into the demo buffer slot of base.
func loadBuffer(e *env, path string, base *graph.Registry) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	buf, err := media.DecodeBuffer(formats.Default(), ext, f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	e.log.Infof("Loaded %s: %d channels, %d frames at %v Hz", path, buf.ChannelCount(), buf.Length(), buf.SampleRate)
	return base.AddBuffer(demoBufferID, buf)
}

func runRender(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	graphPath := fs.String("graph", "", "wire graph file, the demo graph when empty")
	out := fs.String("o", "", "output WAV file (required)")
	seconds := fs.Float64("seconds", 2, "render length in seconds")
	mono := fs.Int("mono", 0, "write 16-bit mono at this rate instead of float at the context rate")
	bufferPath := fs.String("buffer", "", "audio file loaded as buffer 1")
	every := fs.Float64("snapshot-every", 0, "suspend every N seconds and log analyser levels")
	mirror := fs.Bool("mirror", false, "mirror the demo graph's debug sink")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("render: -o is required")
	}
	if *seconds <= 0 {
		return fmt.Errorf("render: -seconds %v must be positive", *seconds)
	}

	base := graph.NewRegistry()
	if *bufferPath != "" {
		if err := loadBuffer(e, *bufferPath, base); err != nil {
			return err
		}
	}
	res, err := loadGraph(e, graphSource{path: *graphPath, buffer: *bufferPath != "", mirror: *mirror}, base)
	if err != nil {
		return err
	}

	length := uint64(math.Round(*seconds * float64(res.SampleRate)))
	var suspends []uint64
	if *every > 0 {
		step := max(uint64(*every*float64(res.SampleRate)), 1)
		for f := step; f < length; f += step {
			q := f - f%render.Quantum
			if !slices.Contains(suspends, q) {
				suspends = append(suspends, q)
			}
		}
	}

	r, err := offline.New(res, offline.Options{
		Length:    length,
		SuspendAt: suspends,
		Session: session.Options{
			Channels:  e.cfg.Channels,
			Resources: base,
			Render:    e.cfg.RenderOptions(),
			Metrics:   e.metrics,
		},
	})
	if err != nil {
		return err
	}
	if err := r.Start(ctx); err != nil {
		return errors.Join(err, r.Close())
	}
	for ev := range r.Events() {
		logSnapshots(e, ev)
		if ev.Kind == offline.EventSuspended {
			if err := r.Resume(nil); err != nil {
				r.Abort()
			}
		}
	}
	result, err := r.Wait()
	if err != nil {
		return err
	}

	if err := writeResult(*out, result, *mono); err != nil {
		return err
	}
	e.log.Infof("Rendered %d frames (%d channels at %d Hz) to %s", result.Frames, result.Channels, result.SampleRate, *out)
	return nil
}

func writeResult(path string, res *offline.Result, monoRate int) (err error) {
	if monoRate > 0 {
		f, cerr := os.Create(path)
		if cerr != nil {
			return cerr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		return audrender.WriteMonoWAV(f, res, monoRate)
	}

	w, err := wav.Create(path, res.SampleRate, res.Channels)
	if err != nil {
		return err
	}
	if err := w.WriteSamples(res.Samples); err != nil {
		return errors.Join(err, w.Close())
	}
	return w.Close()
}

func logSnapshots(e *env, ev offline.Event) {
	for _, s := range ev.Snapshots {
		peak := math.Inf(-1)
		for _, db := range s.Frequency {
			peak = max(peak, float64(db))
		}
		e.log.Infof("%s at frame %d: analyser %d peak %.1f dB", ev.Kind, ev.Frame, s.NodeID, peak)
	}
	for _, c := range ev.Compressors {
		e.log.Infof("%s at frame %d: compressor %d reduction %.1f dB", ev.Kind, ev.Frame, c.NodeID, c.ReductionDB)
	}
}

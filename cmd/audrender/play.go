// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ik5/audrender/formats/wav"
	"github.com/ik5/audrender/graph"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/realtime"
	"github.com/ik5/audrender/session"
)

const (
	devicePeriod  = 10 * time.Millisecond
	housekeepTick = 50 * time.Millisecond
)

func runPlay(ctx context.Context, e *env, args []string) (err error) {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	graphPath := fs.String("graph", "", "wire graph file, the demo graph when empty")
	seconds := fs.Float64("seconds", 3, "how long to play")
	mediaPath := fs.String("media", "", "audio file streamed into the demo graph's media element")
	bufferPath := fs.String("buffer", "", "audio file loaded as buffer 1")
	out := fs.String("o", "", "capture what the device consumes to this float WAV")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *seconds <= 0 {
		return fmt.Errorf("play: -seconds %v must be positive", *seconds)
	}

	base := graph.NewRegistry()
	if *bufferPath != "" {
		if err := loadBuffer(e, *bufferPath, base); err != nil {
			return err
		}
	}

	var feeders []*media.Feeder
	var mediaChannels uint32
	if *mediaPath != "" {
		src, err := openSource(*mediaPath)
		if err != nil {
			return err
		}
		q := media.NewQueue(src.SampleRate(), src.Channels(), src.SampleRate())
		f, err := media.NewFeeder(src, q)
		if err != nil {
			return errors.Join(err, src.Close())
		}
		base.AddMediaProvider(demoProviderID, q)
		feeders = append(feeders, f)
		mediaChannels = uint32(src.Channels())
	}

	res, err := loadGraph(e, graphSource{path: *graphPath, buffer: *bufferPath != "", mediaChannels: mediaChannels}, base)
	if err != nil {
		return err
	}

	opts := e.cfg.RealtimeOptions()
	opts.Metrics = e.metrics
	th, err := realtime.New(opts)
	if err != nil {
		return err
	}
	sess, err := session.New(session.Options{
		Channels:   e.cfg.Channels,
		DeviceRate: e.cfg.SampleRate,
		Resources:  base,
		Render:     e.cfg.RenderOptions(),
		Metrics:    e.metrics,
	})
	if err != nil {
		return err
	}
	if err := sess.SetRenderGraph(res); err != nil {
		return errors.Join(err, sess.Close())
	}

	dev := &realtime.ClockDevice{Period: devicePeriod}
	if *out != "" {
		w, werr := wav.Create(*out, e.cfg.SampleRate, e.cfg.Channels)
		if werr != nil {
			return errors.Join(werr, sess.Close())
		}
		dev.Sink = w.WriteSamples
		defer func() { err = errors.Join(err, w.Close()) }()
	}

	if err := th.OpenOutput(dev); err != nil {
		return errors.Join(err, sess.Close())
	}
	th.Register(sess)
	if err := th.Start(); err != nil {
		return errors.Join(err, th.Close(), sess.Close())
	}
	e.log.Infof("Playing for %vs", *seconds)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(*seconds*float64(time.Second)))
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return media.RunFeeders(gctx, feeders...) })
	g.Go(func() error { return housekeep(gctx, e, sess) })
	runErr := g.Wait()
	if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	th.Unregister(sess)
	frames, underruns := dev.Stats()
	err = errors.Join(runErr, th.Close(), sess.Close())
	e.log.Infof("Device consumed %d frames, %d short periods, %d notifications dropped",
		frames, underruns, sess.DroppedNotifications())
	return err
}

// housekeep is the control side of a playing session: it frees retired
// graphs and reports render-side notifications until ctx is done.
func housekeep(ctx context.Context, e *env, sess *session.Session) error {
	tick := time.NewTicker(housekeepTick)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			sess.DrainRetired()
			return nil
		case n := <-sess.Notifications():
			switch n.Kind {
			case session.NotifyGraphAdopted:
				e.log.Debugf("Session %d adopted a graph at frame %d", sess.ID(), n.Frame)
			default:
				e.log.Warnf("Session %d: %s at frame %d: %v", sess.ID(), n.Kind, n.Frame, n.Err)
			}
		case <-tick.C:
			if n := sess.DrainRetired(); n > 0 {
				e.log.Debugf("Session %d released %d graphs", sess.ID(), n)
			}
		}
	}
}

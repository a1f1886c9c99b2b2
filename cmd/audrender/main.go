// SPDX-License-Identifier: EPL-2.0

// Command audrender renders audio graphs.
//
// Usage:
//
//	audrender [-config file] [-log level] [-metrics addr] <command> [flags]
//
// Commands:
//
//	demo    write the built-in demo graph in wire format
//	render  render a wire graph (or the demo graph) offline to a WAV file
//	play    drive the realtime thread against a clock-paced null device
//
// Examples:
//
//	audrender demo -o demo.graph
//	audrender render -graph demo.graph -seconds 5 -o out.wav
//	audrender render -buffer loop.ogg -mono 8000 -o phone.wav
//	audrender -log debug play -media song.mp3 -seconds 10 -o capture.wav
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/decred/slog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ik5/audrender/config"
	"github.com/ik5/audrender/internal/logging"
	"github.com/ik5/audrender/internal/metrics"
	"github.com/ik5/audrender/media"
	"github.com/ik5/audrender/offline"
	"github.com/ik5/audrender/realtime"
	"github.com/ik5/audrender/render"
	"github.com/ik5/audrender/session"
	"github.com/ik5/audrender/wire"
)

const subsystemMain = "MAIN"

var errUsage = errors.New("usage: audrender [flags] demo|render|play [command flags]")

// env is what every command shares.
type env struct {
	cfg     *config.Config
	logs    *logging.Manager
	log     slog.Logger
	metrics *metrics.Metrics
	stdout  io.Writer
	stderr  io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "audrender:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("audrender", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "YAML configuration file")
	level := fs.String("log", "", "log level, overrides the configuration")
	metricsAddr := fs.String("metrics", "", "serve Prometheus metrics on this address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	if *level != "" {
		cfg.Log.Level = *level
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	e, err := newEnv(cfg, stdout, stderr)
	if err != nil {
		return err
	}

	if *metricsAddr != "" || cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		e.metrics = metrics.New(reg, cfg.Metrics.Namespace)
		if *metricsAddr != "" {
			shutdown := serveMetrics(e, *metricsAddr, reg)
			defer shutdown()
		}
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "demo":
		return runDemo(e, rest)
	case "render":
		return runRender(ctx, e, rest)
	case "play":
		return runPlay(ctx, e, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newEnv(cfg *config.Config, stdout, stderr io.Writer) (*env, error) {
	logs := logging.NewManager(stderr, cfg.Log.Level)
	wire.UseLogger(logs.Logger(logging.SubsystemWire))
	render.UseLogger(logs.Logger(logging.SubsystemRender))
	session.UseLogger(logs.Logger(logging.SubsystemSession))
	realtime.UseLogger(logs.Logger(logging.SubsystemRealtime))
	offline.UseLogger(logs.Logger(logging.SubsystemOffline))
	media.UseLogger(logs.Logger(logging.SubsystemMedia))
	if err := cfg.ApplyLogging(logs); err != nil {
		return nil, err
	}

	return &env{
		cfg:     cfg,
		logs:    logs,
		log:     logs.Logger(subsystemMain),
		metrics: metrics.Discard(),
		stdout:  stdout,
		stderr:  stderr,
	}, nil
}

func serveMetrics(e *env, addr string, reg *prometheus.Registry) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.Errorf("Metrics server: %v", err)
		}
	}()
	e.log.Infof("Serving metrics on %s", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

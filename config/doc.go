// SPDX-License-Identifier: EPL-2.0

// Package config loads the renderer's YAML configuration and maps it onto
// the options of the realtime thread, sessions, media sources and logging.
//
// Every field has a default, so an empty document is a valid configuration:
//
//	sample_rate: 48000
//	channels: 2
//	quantum_frames: 128
//	ring_latency_ms: 40
//	pacing:
//	  max_sleep_ms: 2
//	  ema_alpha: 0.1
//	  write_retries: 3
//	  retry_interval_us: 250
//	media:
//	  controller_gain: 0.01
//	  max_ratio_deviation: 0.02
//	  target_fill_frames: 512
//	  underrun_log_interval_ms: 5000
//	log:
//	  level: info
//	  subsystems:
//	    RTTH: debug
//	metrics:
//	  enabled: false
//	  namespace: audrender
//	debug:
//	  mirror_dir: ""
package config

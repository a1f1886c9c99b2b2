// SPDX-License-Identifier: EPL-2.0

// Package logging wires the per-subsystem decred/slog loggers used across the
// renderer and provides a rate limited gate for render-thread diagnostics.
package logging

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/decred/slog"
)

// Subsystem tags.
const (
	SubsystemWire     = "WIRE"
	SubsystemRender   = "RNDR"
	SubsystemSession  = "SESS"
	SubsystemRealtime = "RTTH"
	SubsystemOffline  = "OFFL"
	SubsystemMedia    = "MDIA"
)

// Manager owns one slog backend and hands out a logger per subsystem.
type Manager struct {
	backend *slog.Backend

	mtx     sync.Mutex
	loggers map[string]slog.Logger
	level   slog.Level
}

// NewManager creates a manager writing to w at the given default level.
// An unknown level string falls back to info.
func NewManager(w io.Writer, level string) *Manager {
	lvl, _ := slog.LevelFromString(level)

	return &Manager{
		backend: slog.NewBackend(w),
		loggers: make(map[string]slog.Logger),
		level:   lvl,
	}
}

// Logger returns the logger for subsystem, creating it on first use.
func (m *Manager) Logger(subsystem string) slog.Logger {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if l, ok := m.loggers[subsystem]; ok {
		return l
	}

	l := m.backend.Logger(subsystem)
	l.SetLevel(m.level)
	m.loggers[subsystem] = l
	return l
}

// SetLevel changes the level of a single subsystem.
func (m *Manager) SetLevel(subsystem, level string) error {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	m.Logger(subsystem).SetLevel(lvl)
	return nil
}

// SetLevels changes the default level and every existing subsystem level.
func (m *Manager) SetLevels(level string) error {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.level = lvl
	for _, l := range m.loggers {
		l.SetLevel(lvl)
	}
	return nil
}

// Subsystems lists the subsystems created so far, sorted.
func (m *Manager) Subsystems() []string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	out := make([]string, 0, len(m.loggers))
	for k := range m.loggers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package loggingtest provides a logging.Logger for unit tests.
package loggingtest

import (
	"sync"
	"testing"
	"time"

	"go.chromium.org/featrun/internal/logging"
)

// Logger copies logs to the test log and keeps those of a minimum level.
// Logs arriving after the test finished, e.g. relayed by a worker that is
// still exiting, are kept but not copied.
type Logger struct {
	t   *testing.T
	min logging.Level

	mu       sync.Mutex
	finished bool
	kept     []string
}

// NewLogger returns a Logger keeping logs of level min or above.
func NewLogger(t *testing.T, min logging.Level) *Logger {
	l := &Logger{t: t, min: min}
	t.Cleanup(func() {
		l.mu.Lock()
		l.finished = true
		l.mu.Unlock()
	})
	return l
}

func (l *Logger) Log(level logging.Level, ts time.Time, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.finished {
		l.t.Logf("[%s] %s", level, msg)
	}
	if level >= l.min {
		l.kept = append(l.kept, msg)
	}
}

// Logs returns the kept messages.
func (l *Logger) Logs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.kept...)
}

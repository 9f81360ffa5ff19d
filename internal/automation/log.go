// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package automation

import (
	"context"

	"go.chromium.org/featrun/internal/logging"
)

// LogModule is the name of the log module.
const LogModule = "log"

// Log prints user messages to the run log.
type Log struct {
	s *Session
}

// NewLog returns a log module and registers it to s.
func NewLog(s *Session) (*Log, error) {
	l := &Log{s: s}
	if err := s.Register(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Name implements Module.
func (*Log) Name() string { return LogModule }

// Close implements Module.
func (*Log) Close(ctx context.Context) error { return nil }

// Info prints msg at info level.
func (l *Log) Info(ctx context.Context, msg string) error {
	return l.print(ctx, "info", logging.LevelInfo, msg)
}

// Warn prints msg at warn level.
func (l *Log) Warn(ctx context.Context, msg string) error {
	return l.print(ctx, "warn", logging.LevelWarn, msg)
}

// Error prints msg at error level.
func (l *Log) Error(ctx context.Context, msg string) error {
	return l.print(ctx, "error", logging.LevelError, msg)
}

// Debug prints msg at debug level.
func (l *Log) Debug(ctx context.Context, msg string) error {
	return l.print(ctx, "debug", logging.LevelDebug, msg)
}

func (l *Log) print(ctx context.Context, command string, level logging.Level, msg string) error {
	return l.s.Call(ctx, LogModule, command, func(ctx context.Context) error {
		switch level {
		case logging.LevelDebug:
			logging.Debug(ctx, msg)
		case logging.LevelWarn:
			logging.Warnf(ctx, "%s", msg)
		case logging.LevelError:
			logging.Errorf(ctx, "%s", msg)
		default:
			logging.Info(ctx, msg)
		}
		return nil
	})
}

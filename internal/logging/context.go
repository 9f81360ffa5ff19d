// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type loggerKey struct{}

// AttachLogger returns a context that sends logs to logger in addition to
// the loggers already attached to ctx.
func AttachLogger(ctx context.Context, logger Logger) context.Context {
	if parent, ok := ctx.Value(loggerKey{}).(Logger); ok {
		logger = NewMultiLogger(logger, parent)
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// Info logs at LevelInfo.
func Info(ctx context.Context, args ...interface{}) {
	emit(ctx, LevelInfo, fmt.Sprint(args...))
}

// Infof logs a formatted message at LevelInfo.
func Infof(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, LevelInfo, fmt.Sprintf(format, args...))
}

// Debug logs at LevelDebug.
func Debug(ctx context.Context, args ...interface{}) {
	emit(ctx, LevelDebug, fmt.Sprint(args...))
}

// Debugf logs a formatted message at LevelDebug.
func Debugf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, LevelDebug, fmt.Sprintf(format, args...))
}

// Warnf emits a log with warn level formatted by fmt.Sprintf.
func Warnf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf emits a log with error level formatted by fmt.Sprintf.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	emit(ctx, LevelError, fmt.Sprintf(format, args...))
}

// emit sends msg to the logger of ctx. Logs travel as JSON between the
// worker and the orchestrator, so invalid UTF-8 is dropped here.
func emit(ctx context.Context, level Level, msg string) {
	ts := time.Now()
	logger, ok := ctx.Value(loggerKey{}).(Logger)
	if !ok {
		return
	}
	logger.Log(level, ts, strings.ToValidUTF8(msg, ""))
}

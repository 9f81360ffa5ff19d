// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/logging/loggingtest"
)

func TestMultiLogger(t *testing.T) {
	logger1 := loggingtest.NewLogger(t, logging.LevelInfo)
	logger2 := loggingtest.NewLogger(t, logging.LevelWarn)

	logger := logging.NewMultiLogger(logger1, logger2)
	logger.Log(logging.LevelInfo, time.Time{}, "aaa")
	logger.Log(logging.LevelWarn, time.Time{}, "bbb")

	if diff := cmp.Diff(logger1.Logs(), []string{"aaa", "bbb"}); diff != "" {
		t.Errorf("Messages mismatch for logger1 (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(logger2.Logs(), []string{"bbb"}); diff != "" {
		t.Errorf("Messages mismatch for logger2 (-got +want):\n%s", diff)
	}
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, logging.LevelInfo, false)

	logger.Log(logging.LevelDebug, time.Time{}, "dropped")
	logger.Log(logging.LevelInfo, time.Time{}, "kept")
	logger.Log(logging.LevelError, time.Time{}, "broken")

	if got, want := buf.String(), "kept\nERROR: broken\n"; got != want {
		t.Errorf("Written logs = %q; want %q", got, want)
	}
}

func TestWriterLoggerTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWriterLogger(&buf, logging.LevelDebug, true)
	logger.Log(logging.LevelWarn, time.Date(2024, 1, 2, 3, 4, 5, 6000000, time.UTC), "msg")

	if got, want := buf.String(), "03:04:05.006 WARN: msg\n"; got != want {
		t.Errorf("Written logs = %q; want %q", got, want)
	}
}

func TestContextPropagation(t *testing.T) {
	parent := loggingtest.NewLogger(t, logging.LevelDebug)
	child := loggingtest.NewLogger(t, logging.LevelDebug)

	ctx := logging.AttachLogger(context.Background(), parent)
	logging.Info(ctx, "to parent")

	childCtx := logging.AttachLogger(ctx, child)
	logging.Debugf(childCtx, "to %s", "both")
	logging.Warnf(childCtx, "bad \xff%s", "utf8")

	if diff := cmp.Diff(parent.Logs(), []string{"to parent", "to both", "bad utf8"}); diff != "" {
		t.Errorf("Parent logs mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(child.Logs(), []string{"to both", "bad utf8"}); diff != "" {
		t.Errorf("Child logs mismatch (-got +want):\n%s", diff)
	}
}

func TestNoLogger(t *testing.T) {
	ctx := context.Background()
	// Must not panic.
	logging.Info(ctx, "nobody listens")
	logging.Errorf(ctx, "nobody %s", "listens")
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want logging.Level
	}{
		{"DEBUG", logging.LevelDebug},
		{"info", logging.LevelInfo},
		{"WARN", logging.LevelWarn},
		{"SEVERE", logging.LevelError},
		{"ERROR", logging.LevelError},
		{"bogus", logging.LevelInfo},
	} {
		if got := logging.ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v; want %v", tc.in, got, tc.want)
		}
		if tc.in != "bogus" && tc.in != "SEVERE" && tc.in != "info" {
			if got := logging.ParseLevel(tc.want.String()); got != tc.want {
				t.Errorf("ParseLevel(%v.String()) = %v", tc.want, got)
			}
		}
	}
}

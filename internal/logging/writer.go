// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// WriterLogger is a Logger that writes one line per log to an io.Writer.
// Writes are synchronized.
type WriterLogger struct {
	level     Level
	timestamp bool

	mu sync.Mutex
	w  io.Writer
}

// NewWriterLogger returns a WriterLogger writing logs of level or above to
// w. If timestamp is true, lines start with the time of the log.
func NewWriterLogger(w io.Writer, level Level, timestamp bool) *WriterLogger {
	return &WriterLogger{level: level, timestamp: timestamp, w: w}
}

// Log writes a line to the underlying io.Writer.
func (l *WriterLogger) Log(level Level, ts time.Time, msg string) {
	if level < l.level {
		return
	}
	var b strings.Builder
	if l.timestamp {
		b.WriteString(ts.Format("15:04:05.000 "))
	}
	if level >= LevelWarn {
		fmt.Fprintf(&b, "%s: ", level)
	}
	b.WriteString(msg)
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.w, b.String())
}

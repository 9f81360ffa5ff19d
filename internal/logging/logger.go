// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package logging carries logs through context.Context.
//
// The orchestrator attaches loggers writing to the console. A worker
// attaches one relaying logs over its control channel. Code emits logs with
// Info, Debug, Warnf and Errorf without knowing where they end up.
package logging

import (
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log. Larger is more severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel returns the level named s, ignoring case. "WARNING" and
// "SEVERE" are accepted as aliases. Other unknown names give LevelInfo.
func ParseLevel(s string) Level {
	switch s = strings.ToUpper(s); s {
	case "WARNING":
		return LevelWarn
	case "SEVERE":
		return LevelError
	}
	for i, n := range levelNames {
		if n == s {
			return Level(i)
		}
	}
	return LevelInfo
}

// Logger receives logs sent through a context.
type Logger interface {
	Log(level Level, ts time.Time, msg string)
}

type multiLogger []Logger

func (ml multiLogger) Log(level Level, ts time.Time, msg string) {
	for _, l := range ml {
		l.Log(level, ts, msg)
	}
}

// NewMultiLogger returns a Logger passing each log to loggers in order.
func NewMultiLogger(loggers ...Logger) Logger {
	return multiLogger(append([]Logger(nil), loggers...))
}

type funcLogger struct {
	mu sync.Mutex
	f  func(level Level, ts time.Time, msg string)
}

func (l *funcLogger) Log(level Level, ts time.Time, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f(level, ts, msg)
}

// NewFuncLogger returns a Logger calling f. Calls to f never overlap.
func NewFuncLogger(f func(level Level, ts time.Time, msg string)) Logger {
	return &funcLogger{f: f}
}

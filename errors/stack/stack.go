// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack records call stacks for the errors package.
package stack

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// depth is the number of frames kept.
const depth = 8

// Frame is a resolved call site.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Stack is a recorded call stack, innermost first. It may hold one frame
// more than depth to tell that it was truncated.
type Stack []uintptr

// New records the stack of its caller, skipping skip more frames.
func New(skip int) Stack {
	pcs := make([]uintptr, depth+1)
	return Stack(pcs[:runtime.Callers(skip+2, pcs)])
}

// Frames resolves up to depth frames of s.
func (s Stack) Frames() []Frame {
	var frames []Frame
	if len(s) == 0 {
		return frames
	}
	it := runtime.CallersFrames(s)
	for len(frames) < depth {
		f, more := it.Next()
		frames = append(frames, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			break
		}
	}
	return frames
}

// String returns one "\tat function (file:line)" line per frame, followed by
// "\t..." if s was truncated.
func (s Stack) String() string {
	var sb strings.Builder
	for i, f := range s.Frames() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "\tat %s (%s:%d)", f.Function, filepath.Base(f.File), f.Line)
	}
	if len(s) > depth {
		sb.WriteString("\n\t...")
	}
	return sb.String()
}

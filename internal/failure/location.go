// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package failure

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// jsFrameRe matches "at fn (file:line:col)" and "at file:line:col".
	jsFrameRe = regexp.MustCompile(`^\s*at (?:(.*?) \()?([^()\s][^()]*?):(\d+)(?::(\d+))?\)?$`)

	// goFrameRe matches the file line of a goroutine trace frame.
	goFrameRe = regexp.MustCompile(`^\t(.+\.go):(\d+)(?: \+0x[0-9a-f]+)?$`)
)

func formatLocation(file string, line, col int) string {
	return fmt.Sprintf("%s:%d:%d", file, line, col)
}

// ResolveLocation returns the source location of a raw error as
// "file:line:col". An explicit location wins over the innermost stack frame.
// It returns nil if neither is available; Go frames have column 0.
func ResolveLocation(raw interface{}) (loc *string) {
	defer func() {
		if recover() != nil {
			loc = nil
		}
	}()

	var r *Raw
	switch v := raw.(type) {
	case *Record:
		if v != nil {
			return v.Location
		}
		return nil
	case *Error:
		if v != nil {
			return v.Record().Location
		}
		return nil
	default:
		r = normalize(raw)
	}
	if r == nil {
		return nil
	}
	if r.Location != nil && *r.Location != "" {
		return r.Location
	}
	if r.Stack == nil {
		return nil
	}
	if len(r.Stack.Frames) > 0 {
		f := r.Stack.Frames[0]
		return strPtr(formatLocation(f.File, f.Line, f.Col))
	}
	if f, ok := parseStackText(r.Stack.Text); ok {
		return strPtr(formatLocation(f.File, f.Line, f.Col))
	}
	return nil
}

// parseStackText returns the innermost frame of a text stack trace. Frames
// inside the Go runtime are skipped.
func parseStackText(text string) (Frame, bool) {
	lastFunc := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if m := goFrameRe.FindStringSubmatch(line); m != nil {
			if isRuntimeFunc(lastFunc) {
				continue
			}
			n, _ := strconv.Atoi(m[2])
			return Frame{Function: lastFunc, File: m[1], Line: n}, true
		}
		if m := jsFrameRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[3])
			col, _ := strconv.Atoi(m[4])
			return Frame{Function: m[1], File: m[2], Line: n, Col: col}, true
		}
		if line != "" && !strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, "goroutine ") {
			lastFunc = line
		}
	}
	return Frame{}, false
}

func isRuntimeFunc(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.HasPrefix(fn, "runtime/debug.") ||
		strings.HasPrefix(fn, "panic(")
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package automation

import (
	"context"
	"fmt"
	"strings"

	"github.com/stretchr/testify/assert"
)

// Module names assertions are reported under.
const (
	AssertModule = "assert"
	VerifyModule = "verify"
)

// AssertionError is returned by a failed assertion.
type AssertionError struct {
	Message string
	// Loc is the "file:line" of the failed assertion, if known.
	Loc string
}

func (e *AssertionError) Error() string { return e.Message }

// Name returns the name the failure classifier knows assertions by.
func (e *AssertionError) Name() string { return "AssertionError" }

// Location returns the location of the assertion as "file:line:col".
func (e *AssertionError) Location() string {
	if e.Loc == "" {
		return ""
	}
	return e.Loc + ":0"
}

// collector is an assert.TestingT recording failure output.
type collector struct {
	out []string
}

func (c *collector) Errorf(format string, args ...interface{}) {
	c.out = append(c.out, fmt.Sprintf(format, args...))
}

// Check runs f, which typically calls a testify assertion, and returns an
// *AssertionError if the assertion failed.
//
//	err := automation.Check(func(t assert.TestingT) bool {
//		return assert.Equal(t, "Home", title)
//	})
func Check(f func(t assert.TestingT) bool) error {
	c := &collector{}
	if f(c) && len(c.out) == 0 {
		return nil
	}
	if len(c.out) == 0 {
		return &AssertionError{Message: "assertion failed"}
	}
	return parseAssertion(strings.Join(c.out, "\n"))
}

// Assert runs a hard assertion as command of the assert module. A failure
// is ASSERT_ERROR and fatal.
func (s *Session) Assert(ctx context.Context, command string, f func(t assert.TestingT) bool) error {
	return s.Call(ctx, AssertModule, command, func(ctx context.Context) error {
		return Check(f)
	})
}

// Verify runs a soft assertion as command of the verify module. A failure
// is VERIFY_ERROR and lets the scenario continue.
func (s *Session) Verify(ctx context.Context, command string, f func(t assert.TestingT) bool) error {
	return s.Call(ctx, VerifyModule, command, func(ctx context.Context) error {
		return Check(f)
	})
}

// parseAssertion extracts the message and location from testify's labeled
// failure output.
func parseAssertion(out string) *AssertionError {
	var loc, msg, extra string
	label := ""
	for _, line := range strings.Split(out, "\n") {
		t := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(t, "Error Trace:"):
			label = "trace"
			if f := strings.Fields(strings.TrimPrefix(t, "Error Trace:")); len(f) > 0 {
				loc = f[0]
			}
		case strings.HasPrefix(t, "Error:"):
			label = "error"
			msg = strings.TrimSpace(strings.TrimPrefix(t, "Error:"))
		case strings.HasPrefix(t, "Messages:"):
			label = "messages"
			extra = strings.TrimSpace(strings.TrimPrefix(t, "Messages:"))
		case strings.HasPrefix(line, "\t ") && t != "":
			// Continuation of the previous label.
			switch label {
			case "error":
				msg += "\n" + t
			case "messages":
				extra += "\n" + t
			}
		default:
			label = ""
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(out)
	}
	if extra != "" {
		msg = extra + ": " + msg
	}
	return &AssertionError{Message: msg, Loc: loc}
}

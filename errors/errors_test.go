// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
)

func TestFormat(t *testing.T) {
	const at = `\n\tat go\.chromium\.org/featrun/errors\.TestFormat \(errors_test\.go:\d+\)`
	for _, tc := range []struct {
		name  string
		err   error
		msg   string
		trace string
	}{
		{"New", New("worker died"), "worker died", `^worker died` + at},
		{"Errorf", Errorf("worker %d died", 3), "worker 3 died", `^worker 3 died` + at},
		{"Wrap", Wrap(New("EOF"), "read failed"), "read failed: EOF", `(?s)^read failed` + at + `.*\nEOF` + at},
		{"WrapForeign", Wrapf(errors.New("EOF"), "%s failed", "read"), "read failed: EOF", `(?s)^read failed` + at + `.*\nEOF\n\tat \?\?\?$`},
		{"WrapNil", Wrap(nil, "no cause"), "no cause", `^no cause` + at},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if s := tc.err.Error(); s != tc.msg {
				t.Errorf("Error() = %q; want %q", s, tc.msg)
			}
			if s := fmt.Sprintf("%v", tc.err); s != tc.msg {
				t.Errorf("%%v = %q; want %q", s, tc.msg)
			}
			if s := fmt.Sprintf("%+v", tc.err); !regexp.MustCompile(tc.trace).MatchString(s) {
				t.Errorf("%%+v = %q; want match of %q", s, tc.trace)
			}
		})
	}
}

func TestChain(t *testing.T) {
	base := errors.New("EOF")
	err := Wrap(Wrap(base, "read failed"), "init failed")
	if !Is(err, base) {
		t.Errorf("Is(%v, base) = false; want true", err)
	}
	var e *E
	if !As(err, &e) || e.msg != "init failed" {
		t.Errorf("As(%v) = %v; want the outermost error", err, e)
	}
	if got := Unwrap(Unwrap(err)); got != base {
		t.Errorf("Unwrap twice = %v; want %v", got, base)
	}
}

func TestStackOf(t *testing.T) {
	if s := StackOf(errors.New("plain")); s != nil {
		t.Errorf("StackOf(plain error) = %v; want nil", s)
	}

	inner := New("inner")
	err := fmt.Errorf("foreign: %w", Wrap(inner, "outer"))
	if got, want := StackOf(err), inner.(*E).Stack(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("StackOf = %v; want the stack of the inner error %v", got, want)
	}
	frames := StackOf(err).Frames()
	if len(frames) == 0 {
		t.Fatal("StackOf returned an empty stack")
	}
	if base := filepath.Base(frames[0].File); base != "errors_test.go" {
		t.Errorf("Innermost file = %q; want errors_test.go", base)
	}
}

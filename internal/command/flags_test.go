// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command_test

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/internal/command"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestDurationFlag(t *testing.T) {
	for _, tc := range []struct {
		name string
		unit time.Duration
		args []string
		def  time.Duration
		want time.Duration
		str  string
	}{
		{"Default", time.Second, nil, 10 * time.Second, 10 * time.Second, "10"},
		{"Seconds", time.Second, []string{"-d=5"}, 0, 5 * time.Second, "5"},
		{"Millis", time.Millisecond, []string{"-d=200"}, 0, 200 * time.Millisecond, "200"},
		{"GoSyntax", time.Second, []string{"-d=1m30s"}, 0, 90 * time.Second, "90"},
		{"Fraction", time.Second, []string{"-d=1500ms"}, 0, 1500 * time.Millisecond, "1.5s"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var d time.Duration
			f := command.NewDurationFlag(tc.unit, &d, tc.def)
			fs := newFlagSet()
			fs.Var(f, "d", "")
			if err := fs.Parse(tc.args); err != nil {
				t.Fatalf("Parse(%q) failed: %v", tc.args, err)
			}
			if d != tc.want {
				t.Errorf("Parse(%q) set %v; want %v", tc.args, d, tc.want)
			}
			if s := f.String(); s != tc.str {
				t.Errorf("String() = %q; want %q", s, tc.str)
			}
		})
	}
}

func TestDurationFlagBad(t *testing.T) {
	var d time.Duration
	fs := newFlagSet()
	fs.Var(command.NewDurationFlag(time.Second, &d, 0), "d", "")
	if err := fs.Parse([]string{"-d=soon"}); err == nil {
		t.Error("Parse succeeded for a bad duration")
	}
}

func TestListFlag(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
		def  []string
		want []string
	}{
		{"Unset", nil, nil, nil},
		{"Default", nil, []string{"@smoke"}, []string{"@smoke"}},
		{"Split", []string{"-tags=@a,@b"}, nil, []string{"@a", "@b"}},
		{"Blanks", []string{"-tags= @a , ,not @b "}, []string{"@c"}, []string{"@a", "not @b"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got []string
			fs := newFlagSet()
			fs.Var(command.NewListFlag(",", func(v []string) { got = v }, tc.def), "tags", "")
			if err := fs.Parse(tc.args); err != nil {
				t.Fatalf("Parse(%q) failed: %v", tc.args, err)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("Parse(%q) mismatch (-got +want):\n%s", tc.args, diff)
			}
		})
	}
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package shutil_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/shutil"
)

func TestEscape(t *testing.T) {
	for _, tc := range []struct {
		in, want string
	}{
		{``, `''`},
		{"\t", "'\t'"},
		{`cart`, `cart`},
		{`my cart`, `'my cart'`},
		{`cart `, `'cart '`},
		{`-Dkey=v@host:/a,b%c+d_e.f`, `-Dkey=v@host:/a,b%c+d_e.f`},
		{`=x`, `'=x'`},
		{`$HOME`, `'$HOME'`},
		{`a;b`, `'a;b'`},
		{`"q"`, `'"q"'`},
		{`don't`, `'don'"'"'t'`},
	} {
		if got := shutil.Escape(tc.in); got != tc.want {
			t.Errorf("Escape(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeSlice(t *testing.T) {
	const want = `input text 'hello world' '*.feature'`
	if got := shutil.EscapeSlice([]string{"input", "text", "hello world", "*.feature"}); got != want {
		t.Errorf("EscapeSlice() = %q; want %q", got, want)
	}
}

func TestSplit(t *testing.T) {
	for _, c := range []struct {
		in  string
		exp []string
	}{
		{``, nil},
		{`  `, nil},
		{`a b  c`, []string{"a", "b", "c"}},
		{`'a b' c`, []string{"a b", "c"}},
		{`"a \"b\"" c`, []string{`a "b"`, "c"}},
		{`a\ b`, []string{"a b"}},
		{`''`, []string{""}},
		{`x'y'"z"`, []string{"xyz"}},
		{`'it'"'"'s'`, []string{"it's"}},
	} {
		got, err := shutil.Split(c.in)
		if err != nil {
			t.Errorf("Split(%q) failed: %v", c.in, err)
			continue
		}
		if diff := cmp.Diff(got, c.exp); diff != "" {
			t.Errorf("Split(%q) mismatch (-got +want):\n%s", c.in, diff)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	args := []string{"", " ", "a'b", `"`, "=foo", "x y z"}
	got, err := shutil.Split(shutil.EscapeSlice(args))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(got, args); diff != "" {
		t.Errorf("Split(EscapeSlice()) mismatch (-got +want):\n%s", diff)
	}
}

func TestSplitError(t *testing.T) {
	for _, in := range []string{`'a`, `"a`, `a\`} {
		if _, err := shutil.Split(in); err == nil {
			t.Errorf("Split(%q) unexpectedly succeeded", in)
		}
	}
}

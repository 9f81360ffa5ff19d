// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package fakeexec_test

import (
	"context"
	"io"
	"os"
	"testing"

	"go.chromium.org/featrun/internal/fakeexec"
	"go.chromium.org/featrun/internal/genericexec"
)

type auxParams struct {
	Str string
	Int int
}

var want = auxParams{Str: "hello", Int: 42}

var auxMain = fakeexec.NewAuxMain("fakeexec_test", func(p auxParams) {
	if p != want {
		os.Exit(28)
	}
	os.Exit(p.Int)
})

var returnMain = fakeexec.NewAuxMain("fakeexec_test_return", func(struct{}) {})

func run(t *testing.T, p *fakeexec.AuxMainParams) int {
	t.Helper()
	ctx := context.Background()
	proc, err := p.Cmd().Interact(ctx, nil)
	if err != nil {
		t.Fatal("Interact failed: ", err)
	}
	io.Copy(io.Discard, proc.Stdout())
	io.Copy(io.Discard, proc.Stderr())
	return genericexec.ExitCode(proc.Wait(ctx))
}

func TestAuxMain(t *testing.T) {
	for _, tc := range []struct {
		name   string
		params auxParams
		status int
	}{
		{"Match", want, 42},
		{"Mismatch", auxParams{Str: "bye"}, 28},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p, err := auxMain.Params(tc.params)
			if err != nil {
				t.Fatal(err)
			}
			if got := run(t, p); got != tc.status {
				t.Errorf("Exit status = %d; want %d", got, tc.status)
			}
		})
	}
}

func TestAuxMainReturns(t *testing.T) {
	p, err := returnMain.Params(struct{}{})
	if err != nil {
		t.Fatal(err)
	}
	if got := run(t, p); got != 0 {
		t.Errorf("Exit status = %d; want 0", got)
	}
	if envs := p.Envs(); len(envs) != 2 {
		t.Errorf("Envs() = %q; want 2 variables", envs)
	}
}

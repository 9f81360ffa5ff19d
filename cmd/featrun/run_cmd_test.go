// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/subcommands"

	"go.chromium.org/featrun/internal/bundle"
	"go.chromium.org/featrun/internal/fakeexec"
	"go.chromium.org/featrun/internal/reporting"
	"go.chromium.org/featrun/internal/steps"
	"go.chromium.org/featrun/testutil"
)

const (
	passFeature = `Feature: Greet
  Scenario: Hello
    Given I log "hello"
    When I run "true"
`
	failFeature = `Feature: Echo
  Scenario: Mismatch
    Then running "echo hi" should print "bye"
`
)

type bundleParams struct{}

var fakeBundle = fakeexec.NewAuxMain("featrun_test_bundle", func(bundleParams) {
	os.Exit(bundle.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, bundle.Delegate{Steps: steps.Register}))
})

// useFakeBundle makes the current test executable act as the worker bundle
// and returns its path.
func useFakeBundle(t *testing.T) string {
	t.Helper()
	p, err := fakeBundle.Params(bundleParams{})
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range p.Envs() {
		k, v, _ := strings.Cut(e, "=")
		t.Setenv(k, v)
	}
	return p.Executable()
}

func executeRunCmd(t *testing.T, args ...string) (subcommands.ExitStatus, string) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRunCmd(&out, &cleanups{})
	flags := flag.NewFlagSet("", flag.ContinueOnError)
	cmd.SetFlags(flags)
	if err := flags.Parse(args); err != nil {
		t.Fatal(err)
	}
	status := cmd.Execute(context.Background(), flags)
	return status, out.String()
}

func TestRunPass(t *testing.T) {
	exe := useFakeBundle(t)
	td := testutil.TempDir(t)
	testutil.MustWriteFiles(t, td, map[string]string{
		"features/greet.feature": passFeature,
		"featrun.yaml":           "specs: ['features/*.feature']\n",
	})
	jsonPath := filepath.Join(td, "results.json")

	status, out := executeRunCmd(t, "-config", filepath.Join(td, "featrun.yaml"), "-bundle", exe, "-json", jsonPath)
	if status != subcommands.ExitSuccess {
		t.Fatalf("run returned %v; want %v\n%s", status, subcommands.ExitSuccess, out)
	}
	if !strings.Contains(out, "1 scenario(s): 1 passed, 0 failed") {
		t.Errorf("Output lacks the summary:\n%s", out)
	}

	b, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Summary reporting.Summary `json:"summary"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if got.Summary.Passed != 1 || !got.Summary.OK() {
		t.Errorf("JSON summary = %+v; want 1 passed", got.Summary)
	}
}

func TestRunFail(t *testing.T) {
	exe := useFakeBundle(t)
	td := testutil.TempDir(t)
	testutil.MustWriteFiles(t, td, map[string]string{"echo.feature": failFeature})

	status, out := executeRunCmd(t, "-cwd", td, "-bundle", exe, "echo.feature")
	if status != subcommands.ExitFailure {
		t.Fatalf("run returned %v; want %v\n%s", status, subcommands.ExitFailure, out)
	}
	if !strings.Contains(out, "FAILED Mismatch") || !strings.Contains(out, "ASSERT_ERROR") {
		t.Errorf("Output lacks the failed case:\n%s", out)
	}
}

func TestRunUsageErrors(t *testing.T) {
	if status, out := executeRunCmd(t); status != subcommands.ExitUsageError {
		t.Errorf("run without specs returned %v; want %v\n%s", status, subcommands.ExitUsageError, out)
	}
	td := testutil.TempDir(t)
	if status, out := executeRunCmd(t, "-config", filepath.Join(td, "missing.yaml"), "a.feature"); status != subcommands.ExitUsageError {
		t.Errorf("run with a missing config returned %v; want %v\n%s", status, subcommands.ExitUsageError, out)
	}
}

func TestRunMissingBundle(t *testing.T) {
	td := testutil.TempDir(t)
	testutil.MustWriteFiles(t, td, map[string]string{"greet.feature": passFeature})
	status, out := executeRunCmd(t, "-cwd", td, "-bundle", filepath.Join(td, "no_such_bundle"), "greet.feature")
	if status != subcommands.ExitFailure {
		t.Errorf("run returned %v; want %v\n%s", status, subcommands.ExitFailure, out)
	}
}

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	v := &versionCmd{out: &out}
	if status := v.Execute(context.Background(), flag.NewFlagSet("", flag.ContinueOnError)); status != subcommands.ExitSuccess {
		t.Errorf("version returned %v", status)
	}
	if got, want := out.String(), "featrun version "+Version+"\n"; got != want {
		t.Errorf("version printed %q; want %q", got, want)
	}
}

func TestCleanups(t *testing.T) {
	var cl cleanups
	var ran []string
	removeA := cl.add(func() { ran = append(ran, "a") })
	cl.add(func() { ran = append(ran, "b") })
	removeA()
	cl.run()
	if len(ran) != 1 || ran[0] != "b" {
		t.Errorf("run called %q; want only b", ran)
	}
}

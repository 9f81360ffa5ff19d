// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/engine"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/testutil"
)

const cartFeature = `Feature: Cart
  Scenario: A
    Given a passing step
    When a step panics
    Then a passing step

  Scenario: B
    Given an undefined step
    Then a passing step

  Scenario: C
    Given a soft failure
    Then a passing step

  @smoke
  Scenario: D
    Given a pending step
    Then a passing step
`

type recorder struct {
	lines  []string
	events []*event.Event
}

func (r *recorder) handle(ev *event.Event) {
	s := ev.String()
	if ev.Result != nil {
		s += " " + string(ev.Result.Status)
	}
	r.lines = append(r.lines, s)
	r.events = append(r.events, ev)
}

func newRegistry() *engine.Registry {
	reg := engine.NewRegistry()
	reg.MustDefine(`a passing step`, func(ctx context.Context, m *engine.Match) error {
		return nil
	})
	reg.MustDefine(`a step panics`, func(ctx context.Context, m *engine.Match) error {
		var st *engine.Step
		_ = st.Text
		return nil
	})
	reg.MustDefine(`a soft failure`, func(ctx context.Context, m *engine.Match) error {
		return failure.NewNonFatal(failure.VerifyError, "title differs")
	})
	reg.MustDefine(`a pending step`, func(ctx context.Context, m *engine.Match) error {
		return engine.ErrPending
	})
	return reg
}

func runCart(t *testing.T, cfg engine.Config) (*engine.Summary, *recorder, string) {
	t.Helper()
	td := testutil.TempDir(t)
	testutil.MustWriteFiles(t, td, map[string]string{"cart.feature": cartFeature})
	path := filepath.Join(td, "cart.feature")

	rec := &recorder{}
	d := event.NewDispatcher()
	if err := d.SubscribeAll(rec.handle); err != nil {
		t.Fatal(err)
	}
	if cfg.Registry == nil {
		cfg.Registry = newRegistry()
	}
	cfg.Dispatcher = d
	cfg.Clock = fakeclock.NewFakeClock(time.Unix(100, 0))

	e, err := engine.New(cfg)
	if err != nil {
		t.Fatal("New failed: ", err)
	}
	sum, err := e.Run(context.Background(), []string{path})
	if err != nil {
		t.Fatal("Run failed: ", err)
	}
	return sum, rec, path
}

// trimURI drops the temporary directory from event lines.
func trimURI(lines []string, path string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.ReplaceAll(l, path, "cart.feature")
	}
	return out
}

func TestRun(t *testing.T) {
	sum, rec, path := runCart(t, engine.Config{})

	exp := []string{
		"feature:before cart.feature:1",
		"scenario:before cart.feature:2",
		"step:before cart.feature:3",
		"step:after cart.feature:3 PASSED",
		"step:before cart.feature:4",
		"step:after cart.feature:4 FAILED",
		"step:before cart.feature:5",
		"step:after cart.feature:5 SKIPPED",
		"scenario:after cart.feature:2 FAILED",
		"scenario:before cart.feature:7",
		"step:before cart.feature:8",
		"step:after cart.feature:8 UNDEFINED",
		"step:before cart.feature:9",
		"step:after cart.feature:9 SKIPPED",
		"scenario:after cart.feature:7 PASSED",
		"scenario:before cart.feature:11",
		"step:before cart.feature:12",
		"step:after cart.feature:12 FAILED",
		"step:before cart.feature:13",
		"step:after cart.feature:13 PASSED",
		"scenario:after cart.feature:11 FAILED",
		"scenario:before cart.feature:16",
		"step:before cart.feature:17",
		"step:after cart.feature:17 PENDING",
		"step:before cart.feature:18",
		"step:after cart.feature:18 SKIPPED",
		"scenario:after cart.feature:16 PASSED",
		"feature:after cart.feature:1",
	}
	if diff := cmp.Diff(trimURI(rec.lines, path), exp); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}

	expSum := &engine.Summary{Features: 1, Scenarios: 4, Failed: 2, Steps: 9}
	if diff := cmp.Diff(sum, expSum); diff != "" {
		t.Errorf("Summary mismatch (-got +want):\n%s", diff)
	}

	for _, ev := range rec.events {
		if !ev.Time.Equal(time.Unix(100, 0)) {
			t.Errorf("%v: Time = %v; want %v", ev, ev.Time, time.Unix(100, 0))
		}
		if ev.Scenario != nil && (ev.SourceLocation == nil || ev.SourceLocation.URI != path) {
			t.Errorf("%v: SourceLocation = %+v; want URI %s", ev, ev.SourceLocation, path)
		}
	}
}

func TestRunPanicClassification(t *testing.T) {
	_, rec, _ := runCart(t, engine.Config{})

	var raw *failure.Raw
	for _, ev := range rec.events {
		if ev.Name == event.StepAfter && ev.Step.Location.Line == 4 {
			raw = ev.Result.Error
		}
	}
	if raw == nil {
		t.Fatal("Panicking step reported no error")
	}

	rec2 := failure.Classify(raw, failure.Context{})
	if rec2.Type != failure.ScriptError {
		t.Errorf("Panic classified as %v; want %v", rec2.Type, failure.ScriptError)
	}
	if !strings.HasPrefix(rec2.Msg(), "ReferenceError: ") {
		t.Errorf("Panic message = %q; want ReferenceError prefix", rec2.Msg())
	}
	if loc := rec2.Loc(); !strings.Contains(loc, "engine_test.go:") {
		t.Errorf("Panic location = %q; want a location in engine_test.go", loc)
	}
}

func TestRunNonFatalKeepsGoing(t *testing.T) {
	_, rec, _ := runCart(t, engine.Config{})

	for _, ev := range rec.events {
		if ev.Name != event.StepAfter || ev.Step.Location.Line != 12 {
			continue
		}
		r := failure.Classify(ev.Result.Error, failure.Context{})
		if r.Type != failure.VerifyError || r.IsFatal {
			t.Errorf("Soft failure classified as %v (fatal=%v); want non-fatal %v", r.Type, r.IsFatal, failure.VerifyError)
		}
	}
}

func TestRunStrict(t *testing.T) {
	sum, rec, path := runCart(t, engine.Config{Strict: true})

	lines := trimURI(rec.lines, path)
	want := "step:after cart.feature:8 FAILED"
	found := false
	for _, l := range lines {
		if l == want {
			found = true
		}
	}
	if !found {
		t.Errorf("Events do not contain %q: %q", want, lines)
	}
	if sum.Failed != 3 {
		t.Errorf("Summary.Failed = %d; want 3", sum.Failed)
	}
}

func TestRunFailFast(t *testing.T) {
	sum, rec, path := runCart(t, engine.Config{FailFast: true})

	lines := trimURI(rec.lines, path)
	if got, want := lines[len(lines)-2], "scenario:after cart.feature:2 FAILED"; got != want {
		t.Errorf("Last scenario event = %q; want %q", got, want)
	}
	if got, want := lines[len(lines)-1], "feature:after cart.feature:1"; got != want {
		t.Errorf("Last event = %q; want %q", got, want)
	}
	if sum.Scenarios != 1 {
		t.Errorf("Summary.Scenarios = %d; want 1", sum.Scenarios)
	}
}

func TestRunTags(t *testing.T) {
	sum, rec, path := runCart(t, engine.Config{Tags: []string{"@smoke"}})

	var scenarios []string
	for _, l := range trimURI(rec.lines, path) {
		if strings.HasPrefix(l, "scenario:before") {
			scenarios = append(scenarios, l)
		}
	}
	if diff := cmp.Diff(scenarios, []string{"scenario:before cart.feature:16"}); diff != "" {
		t.Errorf("Scenarios mismatch (-got +want):\n%s", diff)
	}
	if sum.Scenarios != 1 {
		t.Errorf("Summary.Scenarios = %d; want 1", sum.Scenarios)
	}
}

func TestRunParseError(t *testing.T) {
	td := testutil.TempDir(t)
	testutil.MustWriteFiles(t, td, map[string]string{"bad.feature": "Given nothing\n"})

	rec := &recorder{}
	d := event.NewDispatcher()
	d.SubscribeAll(rec.handle)
	e, err := engine.New(engine.Config{Registry: newRegistry(), Dispatcher: d})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(context.Background(), []string{filepath.Join(td, "bad.feature")}); err == nil {
		t.Error("Run unexpectedly succeeded")
	}
	if len(rec.lines) > 0 {
		t.Errorf("Run emitted events for a broken file: %q", rec.lines)
	}
}

func TestRunAmbiguous(t *testing.T) {
	reg := newRegistry()
	reg.MustDefine(`a passing .*`, func(ctx context.Context, m *engine.Match) error { return nil })

	_, rec, _ := runCart(t, engine.Config{Registry: reg})
	for _, ev := range rec.events {
		if ev.Name == event.StepAfter && ev.Step.Location.Line == 3 {
			if ev.Result.Error == nil || ev.Result.Error.Name != "AmbiguousStepError" {
				t.Errorf("Ambiguous step error = %v; want AmbiguousStepError", ev.Result.Error)
			}
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := engine.NewRegistry()
	f := func(ctx context.Context, m *engine.Match) error { return nil }
	if err := reg.Define(`I have (\d+) items`, f); err != nil {
		t.Fatal("Define failed: ", err)
	}
	if err := reg.Define(`I have (\d+) items`, f); err == nil {
		t.Error("Define of a duplicate expression unexpectedly succeeded")
	}
	if err := reg.Define(`(`, f); err == nil {
		t.Error("Define of a bad expression unexpectedly succeeded")
	}
	if err := reg.Define(`nil`, nil); err == nil {
		t.Error("Define of a nil function unexpectedly succeeded")
	}
	reg.MustDefine(`(`, f)
	if n := len(reg.RegistrationErrors()); n != 1 {
		t.Errorf("RegistrationErrors() returned %d errors; want 1", n)
	}
	if _, err := engine.New(engine.Config{Registry: reg}); err == nil {
		t.Error("New with registration errors unexpectedly succeeded")
	}
}

func TestRunCanceled(t *testing.T) {
	td := testutil.TempDir(t)
	testutil.MustWriteFiles(t, td, map[string]string{"cart.feature": cartFeature})
	e, err := engine.New(engine.Config{Registry: newRegistry()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, []string{filepath.Join(td, "cart.feature")}); !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v; want %v", err, context.Canceled)
	}
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bundle

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/automation"
	"go.chromium.org/featrun/internal/command"
	"go.chromium.org/featrun/internal/control"
	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/engine"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/steps"
	"go.chromium.org/featrun/testutil"
)

const greetFeature = `Feature: Greet
  Scenario: Hello
    Given I log "hello"
    When I run "true"
`

type closeRecorder struct {
	closed int
}

func (*closeRecorder) Name() string { return "db" }

func (m *closeRecorder) Close(ctx context.Context) error {
	m.closed++
	return nil
}

func mustMarshal(t *testing.T, vs ...interface{}) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	for _, v := range vs {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, b)
	}
	return out
}

func TestWorker(t *testing.T) {
	td := testutil.TempDir(t)
	testutil.MustWriteFiles(t, td, map[string]string{"greet.feature": greetFeature})

	db := &closeRecorder{}
	var gotCaps driver.Caps
	reg := engine.NewRegistry()
	steps.Register(reg)
	w := newWorker(Delegate{
		Modules: func(ctx context.Context, s *automation.Session, caps driver.Caps) error {
			gotCaps = caps
			return s.Register(db)
		},
	}, reg)

	var names []event.Name
	disp := event.NewDispatcher()
	if err := disp.SubscribeAll(func(ev *event.Event) { names = append(names, ev.Name) }); err != nil {
		t.Fatal(err)
	}
	env := &Env{Dispatcher: disp, Clock: fakeclock.NewFakeClock(time.Unix(0, 0))}
	ctx := context.Background()

	if _, err := w.run(ctx, env, nil); err == nil {
		t.Error("run before init unexpectedly succeeded")
	}

	cfg := control.WorkerConfig{Specs: []string{filepath.Join(td, "greet.feature")}, Cwd: td}
	if _, err := w.init(ctx, env, mustMarshal(t, "runner-1", cfg)); err != nil {
		t.Fatal("init failed: ", err)
	}
	if _, err := w.init(ctx, env, mustMarshal(t, "runner-2", cfg)); err == nil {
		t.Error("Second init unexpectedly succeeded")
	}

	ret, err := w.run(ctx, env, mustMarshal(t, map[string]interface{}{"custom": "x"}))
	if err != nil {
		t.Fatal("run failed: ", err)
	}
	if diff := cmp.Diff(ret, &engine.Summary{Features: 1, Scenarios: 1, Steps: 2}); diff != "" {
		t.Errorf("run returned unexpected summary (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(gotCaps, driver.Caps{"custom": "x"}); diff != "" {
		t.Errorf("Caps mismatch (-got +want):\n%s", diff)
	}

	exp := []event.Name{
		event.FeatureBefore,
		event.ScenarioBefore,
		event.StepBefore, event.CommandBefore, event.CommandAfter, event.StepAfter,
		event.StepBefore, event.CommandBefore, event.CommandAfter, event.StepAfter,
		event.ScenarioAfter,
		event.FeatureAfter,
	}
	if diff := cmp.Diff(names, exp); diff != "" {
		t.Errorf("Events mismatch (-got +want):\n%s", diff)
	}

	for i := 0; i < 2; i++ {
		if _, err := w.dispose(ctx, env, nil); err != nil {
			t.Errorf("dispose #%d failed: %v", i, err)
		}
	}
	if db.closed != 1 {
		t.Errorf("Module closed %d times; want 1", db.closed)
	}
}

func TestNewBundleErrors(t *testing.T) {
	for _, tc := range []struct {
		name   string
		args   []string
		steps  func(r *engine.Registry)
		status int
	}{
		{"BadFlag", []string{"-bogus"}, nil, statusBadArgs},
		{"ExtraArgs", []string{"a.feature"}, nil, statusBadArgs},
		{"BadSteps", nil, func(r *engine.Registry) {
			r.MustDefine(`(unclosed`, func(context.Context, *engine.Match) error { return nil })
		}, statusBadSteps},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := newBundle(tc.args, io.Discard, Delegate{Steps: tc.steps})
			var se *command.StatusError
			if !errors.As(err, &se) || se.Status() != tc.status {
				t.Errorf("newBundle(%q) = %v; want status %d", tc.args, err, tc.status)
			}
		})
	}

	srv, w, err := newBundle([]string{"-log_level", "warn"}, io.Discard, Delegate{Steps: steps.Register})
	if err != nil {
		t.Fatal(err)
	}
	if srv.level.String() != "WARN" || w == nil {
		t.Errorf("newBundle = level %v; want WARN", srv.level)
	}
}

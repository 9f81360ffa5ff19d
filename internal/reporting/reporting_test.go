// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/logging/loggingtest"
	"go.chromium.org/featrun/internal/reporting"
	"go.chromium.org/featrun/internal/result"
)

func TestNilSink(t *testing.T) {
	var s *reporting.Sink
	s.RunnerStart("id")
	s.StepEnd(&result.Step{})
	(&reporting.Sink{}).SuiteEnd(&result.Suite{})
}

func TestMulti(t *testing.T) {
	var calls []string
	a := &reporting.Sink{OnCaseEnd: func(c *result.Case) { calls = append(calls, "a "+c.Name) }}
	b := &reporting.Sink{
		OnCaseEnd:   func(c *result.Case) { calls = append(calls, "b "+c.Name) },
		OnRunnerEnd: func(id string, err error) { calls = append(calls, "b end "+id) },
	}
	m := reporting.Multi(a, nil, b)
	m.CaseEnd(&result.Case{Name: "x"})
	m.RunnerEnd("r1", nil)
	m.StepStart(&result.Step{})

	if diff := cmp.Diff(calls, []string{"a x", "b x", "b end r1"}); diff != "" {
		t.Errorf("Calls mismatch (-got +want):\n%s", diff)
	}
}

func TestConsole(t *testing.T) {
	lg := loggingtest.NewLogger(t, logging.LevelInfo)
	c := reporting.NewConsole(lg, fakeclock.NewFakeClock(time.Unix(0, 0)))
	s := c.Sink()

	suite := &result.Suite{Name: "Cart", Location: "cart.feature:1"}
	ok := &result.Case{Name: "A", Location: "cart.feature:3", Status: result.Passed}
	bad := &result.Case{Name: "B", Location: "cart.feature:7", Status: result.Failed}
	step := &result.Step{
		Name:    "Given c",
		Status:  result.Failed,
		Failure: failure.Classify(&failure.Raw{Name: "NoSuchElement"}, failure.Context{}),
	}

	s.RunnerStart("r1")
	s.SuiteStart(suite)
	s.CaseStart(ok)
	s.CaseEnd(ok)
	s.CaseStart(bad)
	s.StepStart(step)
	s.StepEnd(step)
	s.CaseEnd(bad)
	suite.Status = result.Failed
	s.SuiteEnd(suite)
	s.RunnerEnd("r1", errors.New("worker crashed"))

	sum := c.Summary()
	exp := reporting.Summary{
		Suites:      1,
		Cases:       2,
		Passed:      1,
		Failed:      1,
		FailedCases: []string{"B (cart.feature:7)"},
		RunErr:      "worker crashed",
	}
	if diff := cmp.Diff(sum, exp); diff != "" {
		t.Errorf("Summary mismatch (-got +want):\n%s", diff)
	}
	if sum.OK() {
		t.Error("OK() = true for a failed run")
	}

	logs := lg.Logs()
	if len(logs) == 0 || logs[0] != "Starting run r1" {
		t.Errorf("Logs = %q; want the first line to announce the run", logs)
	}
	if last := logs[len(logs)-1]; last != "  FAILED B (cart.feature:7)" {
		t.Errorf("Last log = %q; want the failed case", last)
	}

	var buf bytes.Buffer
	if err := c.WriteJSON(&buf); err != nil {
		t.Fatal("WriteJSON failed: ", err)
	}
	var got struct {
		Suites  []*result.Suite   `json:"suites"`
		Summary reporting.Summary `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got.Suites) != 1 || got.Suites[0].Name != "Cart" || got.Summary.Failed != 1 {
		t.Errorf("WriteJSON wrote %s", buf.String())
	}
}

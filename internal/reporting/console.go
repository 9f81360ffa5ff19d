// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/result"
)

// Summary counts the results of a run.
type Summary struct {
	Suites int `json:"suites"`
	Cases  int `json:"cases"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	// FailedCases lists "name (location)" of the failed cases in order.
	FailedCases []string `json:"failedCases,omitempty"`
	// RunErr is the error the run ended with, if any.
	RunErr string `json:"runError,omitempty"`
}

// OK reports whether the run completed without failures.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.RunErr == ""
}

// Console logs progress lines and collects a Summary.
type Console struct {
	lg  logging.Logger
	clk clock.Clock

	mu     sync.Mutex
	sum    Summary
	suites []*result.Suite
}

// NewConsole returns a Console logging to lg. The real clock stamps lines
// if clk is nil.
func NewConsole(lg logging.Logger, clk clock.Clock) *Console {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Console{lg: lg, clk: clk}
}

func (c *Console) log(level logging.Level, format string, args ...interface{}) {
	c.lg.Log(level, c.clk.Now(), fmt.Sprintf(format, args...))
}

// Sink returns the callbacks of c.
func (c *Console) Sink() *Sink {
	return &Sink{
		OnRunnerStart: func(id string) {
			c.log(logging.LevelInfo, "Starting run %s", id)
		},
		OnRunnerEnd: func(id string, err error) {
			c.mu.Lock()
			if err != nil {
				c.sum.RunErr = err.Error()
			}
			sum := c.sum
			c.mu.Unlock()

			if err != nil {
				c.log(logging.LevelError, "Run %s failed: %v", id, err)
			}
			c.log(logging.LevelInfo, "%d scenario(s): %d passed, %d failed", sum.Cases, sum.Passed, sum.Failed)
			for _, fc := range sum.FailedCases {
				c.log(logging.LevelInfo, "  FAILED %s", fc)
			}
		},
		OnSuiteStart: func(s *result.Suite) {
			c.log(logging.LevelInfo, "Feature: %s (%s)", s.Name, s.Location)
		},
		OnSuiteEnd: func(s *result.Suite) {
			c.mu.Lock()
			c.sum.Suites++
			c.suites = append(c.suites, s)
			c.mu.Unlock()
			c.log(logging.LevelInfo, "Feature %s %s in %v", s.Name, s.Status, s.Duration)
		},
		OnCaseStart: func(cs *result.Case) {
			c.log(logging.LevelInfo, "  Scenario: %s", cs.Name)
		},
		OnCaseEnd: func(cs *result.Case) {
			c.mu.Lock()
			c.sum.Cases++
			if cs.Status == result.Failed {
				c.sum.Failed++
				c.sum.FailedCases = append(c.sum.FailedCases, fmt.Sprintf("%s (%s)", cs.Name, cs.Location))
			} else {
				c.sum.Passed++
			}
			c.mu.Unlock()
			c.log(logging.LevelInfo, "  => %s", cs.Status)
		},
		OnStepStart: func(st *result.Step) {
			c.log(logging.LevelDebug, "    %s", st.Name)
		},
		OnStepEnd: func(st *result.Step) {
			if st.Failure == nil {
				c.log(logging.LevelInfo, "    [%s] %s", st.Status, st.Name)
				return
			}
			c.log(logging.LevelError, "    [%s] %s: %s", st.Status, st.Name, st.Failure)
		},
	}
}

// Summary returns the counts collected so far.
func (c *Console) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := c.sum
	sum.FailedCases = append([]string(nil), c.sum.FailedCases...)
	return sum
}

// WriteJSON writes the finished suites and the summary to w as JSON.
func (c *Console) WriteJSON(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&struct {
		Suites  []*result.Suite `json:"suites"`
		Summary Summary         `json:"summary"`
	}{c.suites, c.sum})
}

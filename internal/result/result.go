// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package result defines the suite, case and step results produced by a run.
package result

import (
	"time"

	"go.chromium.org/featrun/internal/failure"
)

// Status is the outcome of a step, case or suite.
type Status string

const (
	// Passed indicates that the node completed without failures.
	Passed Status = "PASSED"
	// Failed indicates that the node or one of its children failed.
	Failed Status = "FAILED"

	// The following values are reported by the engine for steps only.

	// Skipped indicates that the step was not run because an earlier step failed.
	Skipped Status = "SKIPPED"
	// Pending indicates that the step definition is not implemented yet.
	Pending Status = "PENDING"
	// Undefined indicates that no step definition matched the step.
	Undefined Status = "UNDEFINED"
)

// Step is the result of a single step.
type Step struct {
	Name      string          `json:"name"`
	Location  string          `json:"location"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Duration  time.Duration   `json:"duration"`
	Status    Status          `json:"status"`
	Failure   *failure.Record `json:"failure,omitempty"`
}

// Case is the result of a scenario.
type Case struct {
	Name      string        `json:"name"`
	Tags      []string      `json:"tags"`
	Location  string        `json:"location"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	Steps     []*Step       `json:"steps"`
}

// Suite is the result of a feature.
type Suite struct {
	Name      string        `json:"name"`
	Tags      []string      `json:"tags"`
	Location  string        `json:"location"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	Cases     []*Case       `json:"cases"`
}

// Rollup computes the status of a node from the statuses of its immediate
// children. It is Failed if any child failed and Passed otherwise, including
// when there are no children.
func Rollup(children []Status) Status {
	for _, s := range children {
		if s == Failed {
			return Failed
		}
	}
	return Passed
}

// CaseStatus rolls up the statuses of c's steps.
func CaseStatus(c *Case) Status {
	ss := make([]Status, len(c.Steps))
	for i, st := range c.Steps {
		ss[i] = st.Status
	}
	return Rollup(ss)
}

// SuiteStatus rolls up the statuses of s's cases.
func SuiteStatus(s *Suite) Status {
	ss := make([]Status, len(s.Cases))
	for i, c := range s.Cases {
		ss[i] = c.Status
	}
	return Rollup(ss)
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package reporting defines the callbacks results are reported through and
// the reporters built on them.
package reporting

import (
	"go.chromium.org/featrun/internal/result"
)

// Sink receives the progress of a run. Every field is optional.
//
// Nodes passed to callbacks are owned by the aggregator: they must not be
// modified, and they may change after the callback returns.
type Sink struct {
	OnRunnerStart func(id string)
	// OnRunnerEnd is called when a run finishes. err is non-nil if the run
	// could not complete.
	OnRunnerEnd func(id string, err error)

	OnSuiteStart func(s *result.Suite)
	OnSuiteEnd   func(s *result.Suite)
	OnCaseStart  func(c *result.Case)
	OnCaseEnd    func(c *result.Case)
	OnStepStart  func(st *result.Step)
	OnStepEnd    func(st *result.Step)
}

// The following methods call the corresponding callback if it is set. They
// can be called on a nil *Sink.

func (s *Sink) RunnerStart(id string) {
	if s != nil && s.OnRunnerStart != nil {
		s.OnRunnerStart(id)
	}
}

func (s *Sink) RunnerEnd(id string, err error) {
	if s != nil && s.OnRunnerEnd != nil {
		s.OnRunnerEnd(id, err)
	}
}

func (s *Sink) SuiteStart(x *result.Suite) {
	if s != nil && s.OnSuiteStart != nil {
		s.OnSuiteStart(x)
	}
}

func (s *Sink) SuiteEnd(x *result.Suite) {
	if s != nil && s.OnSuiteEnd != nil {
		s.OnSuiteEnd(x)
	}
}

func (s *Sink) CaseStart(c *result.Case) {
	if s != nil && s.OnCaseStart != nil {
		s.OnCaseStart(c)
	}
}

func (s *Sink) CaseEnd(c *result.Case) {
	if s != nil && s.OnCaseEnd != nil {
		s.OnCaseEnd(c)
	}
}

func (s *Sink) StepStart(st *result.Step) {
	if s != nil && s.OnStepStart != nil {
		s.OnStepStart(st)
	}
}

func (s *Sink) StepEnd(st *result.Step) {
	if s != nil && s.OnStepEnd != nil {
		s.OnStepEnd(st)
	}
}

// Multi returns a Sink that forwards every callback to sinks in order.
func Multi(sinks ...*Sink) *Sink {
	return &Sink{
		OnRunnerStart: func(id string) {
			for _, s := range sinks {
				s.RunnerStart(id)
			}
		},
		OnRunnerEnd: func(id string, err error) {
			for _, s := range sinks {
				s.RunnerEnd(id, err)
			}
		},
		OnSuiteStart: func(x *result.Suite) {
			for _, s := range sinks {
				s.SuiteStart(x)
			}
		},
		OnSuiteEnd: func(x *result.Suite) {
			for _, s := range sinks {
				s.SuiteEnd(x)
			}
		},
		OnCaseStart: func(c *result.Case) {
			for _, s := range sinks {
				s.CaseStart(c)
			}
		},
		OnCaseEnd: func(c *result.Case) {
			for _, s := range sinks {
				s.CaseEnd(c)
			}
		},
		OnStepStart: func(st *result.Step) {
			for _, s := range sinks {
				s.StepStart(st)
			}
		},
		OnStepEnd: func(st *result.Step) {
			for _, s := range sinks {
				s.StepEnd(st)
			}
		},
	}
}

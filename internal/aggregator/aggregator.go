// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package aggregator reduces lifecycle events into a suite/case/step result
// tree.
package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/reporting"
	"go.chromium.org/featrun/internal/result"
)

type nodeState int

const (
	open nodeState = iota + 1
	closed
)

type suiteNode struct {
	suite *result.Suite
	state nodeState
}

type caseNode struct {
	c     *result.Case
	state nodeState
	steps map[string]*stepNode
}

type stepNode struct {
	step  *result.Step
	state nodeState
}

// Aggregator builds the result tree of a run from lifecycle events.
//
// Malformed or out-of-order events never fail the aggregator: an "after"
// event without an open node is ignored, as is a "before" event for a node
// that already exists.
type Aggregator struct {
	ctx  context.Context
	sink *reporting.Sink
	clk  clock.Clock

	mu       sync.Mutex
	suites   []*result.Suite
	suiteMap map[string]*suiteNode
	caseMap  map[string]*caseNode
	commands int
}

// New returns an Aggregator subscribed to the lifecycle events of d. Tree
// transitions are reported to sink, which may be nil. ctx carries the logger
// command events are logged to.
func New(ctx context.Context, d *event.Dispatcher, sink *reporting.Sink, clk clock.Clock) (*Aggregator, error) {
	if clk == nil {
		clk = clock.NewClock()
	}
	a := &Aggregator{
		ctx:      ctx,
		sink:     sink,
		clk:      clk,
		suiteMap: make(map[string]*suiteNode),
		caseMap:  make(map[string]*caseNode),
	}
	for name, h := range map[event.Name]event.Handler{
		event.FeatureBefore:  a.featureBefore,
		event.FeatureAfter:   a.featureAfter,
		event.ScenarioBefore: a.scenarioBefore,
		event.ScenarioAfter:  a.scenarioAfter,
		event.StepBefore:     a.stepBefore,
		event.StepAfter:      a.stepAfter,
		event.CommandBefore:  a.command,
		event.CommandAfter:   a.command,
	} {
		if err := d.Subscribe(name, h); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Suites returns the suites created so far in the order they started.
func (a *Aggregator) Suites() []*result.Suite {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*result.Suite(nil), a.suites...)
}

// CommandCount returns the number of command events seen.
func (a *Aggregator) CommandCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.commands
}

func key(uri string, line int) string {
	return fmt.Sprintf("%s:%d", uri, line)
}

// caseKey returns the key of the scenario of ev. The resolved location is
// used when the engine reports one.
func caseKey(ev *event.Event) (string, bool) {
	if ev.SourceLocation != nil {
		return key(ev.SourceLocation.URI, ev.SourceLocation.Line), true
	}
	if ev.Scenario == nil {
		return "", false
	}
	return key(ev.URI, ev.Scenario.Location.Line), true
}

func (a *Aggregator) now(ev *event.Event) time.Time {
	if !ev.Time.IsZero() {
		return ev.Time
	}
	return a.clk.Now()
}

func tagNames(tags []event.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

func (a *Aggregator) featureBefore(ev *event.Event) {
	if ev.Feature == nil {
		return
	}
	k := key(ev.URI, ev.Feature.Location.Line)

	a.mu.Lock()
	if _, ok := a.suiteMap[k]; ok {
		a.mu.Unlock()
		return
	}
	s := &result.Suite{
		Name:      ev.Feature.Name,
		Tags:      tagNames(ev.Feature.Tags),
		Location:  k,
		StartTime: a.now(ev),
	}
	a.suiteMap[k] = &suiteNode{suite: s, state: open}
	a.suites = append(a.suites, s)
	a.mu.Unlock()

	a.sink.SuiteStart(s)
}

func (a *Aggregator) featureAfter(ev *event.Event) {
	if ev.Feature == nil {
		return
	}
	k := key(ev.URI, ev.Feature.Location.Line)

	a.mu.Lock()
	n, ok := a.suiteMap[k]
	if !ok || n.state != open {
		a.mu.Unlock()
		return
	}
	n.state = closed
	s := n.suite
	s.EndTime = a.now(ev)
	s.Duration = s.EndTime.Sub(s.StartTime)
	s.Status = result.SuiteStatus(s)
	a.mu.Unlock()

	a.sink.SuiteEnd(s)
}

func (a *Aggregator) scenarioBefore(ev *event.Event) {
	k, ok := caseKey(ev)
	if !ok || ev.Feature == nil || ev.Scenario == nil {
		return
	}

	a.mu.Lock()
	sn, ok := a.suiteMap[key(ev.URI, ev.Feature.Location.Line)]
	if !ok || sn.state != open {
		a.mu.Unlock()
		return
	}
	if _, ok := a.caseMap[k]; ok {
		a.mu.Unlock()
		return
	}
	c := &result.Case{
		Name:      ev.Scenario.Name,
		Tags:      tagNames(ev.Scenario.Tags),
		Location:  k,
		StartTime: a.now(ev),
	}
	a.caseMap[k] = &caseNode{c: c, state: open, steps: make(map[string]*stepNode)}
	sn.suite.Cases = append(sn.suite.Cases, c)
	a.mu.Unlock()

	a.sink.CaseStart(c)
}

func (a *Aggregator) scenarioAfter(ev *event.Event) {
	k, ok := caseKey(ev)
	if !ok {
		return
	}

	a.mu.Lock()
	n, ok := a.caseMap[k]
	if !ok || n.state != open {
		a.mu.Unlock()
		return
	}
	n.state = closed
	c := n.c
	c.EndTime = a.now(ev)
	c.Duration = c.EndTime.Sub(c.StartTime)
	c.Status = result.CaseStatus(c)
	a.mu.Unlock()

	a.sink.CaseEnd(c)
}

func (a *Aggregator) stepBefore(ev *event.Event) {
	k, ok := caseKey(ev)
	if !ok || ev.Step == nil {
		return
	}
	sk := key(ev.URI, ev.Step.Location.Line)

	a.mu.Lock()
	cn, ok := a.caseMap[k]
	if !ok || cn.state != open {
		a.mu.Unlock()
		return
	}
	if _, ok := cn.steps[sk]; ok {
		a.mu.Unlock()
		return
	}
	st := &result.Step{
		Name:      ev.Step.Keyword + ev.Step.Name,
		Location:  sk,
		StartTime: a.now(ev),
	}
	cn.steps[sk] = &stepNode{step: st, state: open}
	cn.c.Steps = append(cn.c.Steps, st)
	a.mu.Unlock()

	a.sink.StepStart(st)
}

func (a *Aggregator) stepAfter(ev *event.Event) {
	k, ok := caseKey(ev)
	if !ok || ev.Step == nil {
		return
	}
	sk := key(ev.URI, ev.Step.Location.Line)

	a.mu.Lock()
	cn, ok := a.caseMap[k]
	if !ok || cn.state != open {
		a.mu.Unlock()
		return
	}
	n, ok := cn.steps[sk]
	if !ok || n.state != open {
		a.mu.Unlock()
		return
	}
	n.state = closed
	st := n.step
	st.EndTime = a.now(ev)
	st.Duration = st.EndTime.Sub(st.StartTime)
	st.Status = result.Failed
	if ev.Result != nil {
		st.Status = ev.Result.Status
		if ev.Result.Duration > 0 {
			st.Duration = ev.Result.Duration
		}
		if ev.Result.Error != nil {
			st.Failure = failure.Classify(ev.Result.Error, failure.Context{})
		}
	}
	a.mu.Unlock()

	a.sink.StepEnd(st)
}

func (a *Aggregator) command(ev *event.Event) {
	a.mu.Lock()
	a.commands++
	a.mu.Unlock()

	if ev.Command == nil {
		return
	}
	if ev.Result != nil && ev.Result.Error != nil {
		logging.Debugf(a.ctx, "%s %s.%s: %s", ev.Name, ev.Command.Module, ev.Command.Name, ev.Result.Error.Error())
		return
	}
	logging.Debugf(a.ctx, "%s %s.%s", ev.Name, ev.Command.Module, ev.Command.Name)
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package engine parses feature files and executes their scenarios against
// registered step definitions, emitting lifecycle events as it goes.
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/result"
)

// Config holds the parameters of an Engine.
type Config struct {
	Registry *Registry
	// Dispatcher receives lifecycle events. Events are dropped if it is nil.
	Dispatcher *event.Dispatcher
	// Clock stamps events and measures step durations. The real clock is
	// used if it is nil.
	Clock clock.Clock

	// Tags are tag expressions scenarios must satisfy. See TagFilter.
	Tags []string
	// FailFast stops the run after the first failed scenario.
	FailFast bool
	// Strict reports undefined steps as failed.
	Strict bool
	// StepTimeout limits the runtime of a single step if positive.
	StepTimeout time.Duration
}

// Summary counts what a run executed.
type Summary struct {
	Features  int `json:"features"`
	Scenarios int `json:"scenarios"`
	Failed    int `json:"failed"`
	Steps     int `json:"steps"`
}

// Engine runs feature files.
type Engine struct {
	cfg    Config
	clk    clock.Clock
	filter *TagFilter
}

// New returns an Engine for cfg.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, errors.New("no step registry")
	}
	if errs := cfg.Registry.RegistrationErrors(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			msgs[i] = err.Error()
		}
		return nil, errors.Errorf("error(s) in step definitions: %s", strings.Join(msgs, ", "))
	}
	filter, err := NewTagFilter(cfg.Tags)
	if err != nil {
		return nil, err
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Engine{cfg: cfg, clk: clk, filter: filter}, nil
}

// Run parses the feature files at paths and runs their scenarios in order.
//
// All files are parsed before any scenario runs; a parse error aborts the
// run without emitting events. Step failures are reported through events
// and the returned Summary, not as an error. Run returns ctx.Err() if ctx
// is done before all scenarios ran.
func (e *Engine) Run(ctx context.Context, paths []string) (*Summary, error) {
	var feats []*Feature
	for _, p := range paths {
		f, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		feats = append(feats, f)
	}

	sum := &Summary{}
	for _, f := range feats {
		var ps []*Pickle
		for _, p := range Pickles(f) {
			if e.filter.Match(p.TagNames()) {
				ps = append(ps, p)
			}
		}
		if len(ps) == 0 {
			logging.Debugf(ctx, "No scenarios to run in %s", f.URI)
			continue
		}

		sum.Features++
		fnode := &event.Node{Keyword: f.Keyword, Name: f.Name, Location: event.Location{Line: f.Line}, Tags: f.Tags}
		e.emit(&event.Event{Name: event.FeatureBefore, URI: f.URI, Feature: fnode})
		stop := false
		for _, p := range ps {
			if ctx.Err() != nil {
				break
			}
			if e.runPickle(ctx, fnode, p, sum) == result.Failed {
				sum.Failed++
				if e.cfg.FailFast {
					logging.Info(ctx, "Stopping after the first failed scenario")
					stop = true
					break
				}
			}
		}
		e.emit(&event.Event{Name: event.FeatureAfter, URI: f.URI, Feature: fnode})
		if stop {
			break
		}
	}
	return sum, ctx.Err()
}

func (e *Engine) runPickle(ctx context.Context, fnode *event.Node, p *Pickle, sum *Summary) result.Status {
	snode := &event.Node{Keyword: p.Keyword, Name: p.Name, Location: event.Location{Line: p.Line}, Tags: p.Tags}
	loc := &event.SourceLocation{URI: p.URI, Line: p.SourceLine}
	base := event.Event{URI: p.URI, Feature: fnode, Scenario: snode, SourceLocation: loc}

	before := base
	before.Name = event.ScenarioBefore
	e.emit(&before)

	statuses := make([]result.Status, 0, len(p.Steps))
	skip := false
	for _, st := range p.Steps {
		ev := base
		ev.Name = event.StepBefore
		ev.Step = &event.Node{Keyword: st.Keyword, Name: st.Text, Location: event.Location{Line: st.Line}}
		e.emit(&ev)

		res := &event.Result{Status: result.Skipped}
		if !skip && ctx.Err() == nil {
			start := e.clk.Now()
			var fatal bool
			res, fatal = e.runStep(ctx, st)
			res.Duration = e.clk.Since(start)
			if res.Status != result.Passed && fatal {
				skip = true
			}
		}

		after := ev
		after.Name = event.StepAfter
		after.Result = res
		e.emit(&after)
		statuses = append(statuses, res.Status)
	}

	status := result.Rollup(statuses)
	after := base
	after.Name = event.ScenarioAfter
	after.Result = &event.Result{Status: status}
	e.emit(&after)

	sum.Scenarios++
	sum.Steps += len(p.Steps)
	return status
}

// runStep runs a single step. fatal is false only for non-fatal failures,
// which let the following steps run.
func (e *Engine) runStep(ctx context.Context, st *Step) (res *event.Result, fatal bool) {
	def, args, err := e.cfg.Registry.find(st.Text)
	if err != nil {
		return &event.Result{Status: result.Failed, Error: failure.FromError(err)}, true
	}
	if def == nil {
		if e.cfg.Strict {
			return &event.Result{Status: result.Failed, Error: failure.FromError(&undefinedError{st.Text})}, true
		}
		return &event.Result{Status: result.Undefined}, true
	}

	m := &Match{Text: st.Text, Args: args, DocString: st.DocString, Table: st.Table}
	err = e.call(ctx, def, m)
	switch {
	case err == nil:
		return &event.Result{Status: result.Passed}, false
	case errors.Is(err, ErrPending):
		return &event.Result{Status: result.Pending}, true
	}
	var fe *failure.Error
	fatal = !errors.As(err, &fe) || fe.Record().IsFatal
	return &event.Result{Status: result.Failed, Error: failure.FromError(err)}, fatal
}

func (e *Engine) call(ctx context.Context, d *definition, m *Match) (err error) {
	if e.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StepTimeout)
		defer cancel()
	}
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v, string(debug.Stack()))
		}
	}()
	return d.f(ctx, m)
}

func (e *Engine) emit(ev *event.Event) {
	if e.cfg.Dispatcher == nil {
		return
	}
	ev.Time = e.clk.Now()
	e.cfg.Dispatcher.Dispatch(ev)
}

type undefinedError struct {
	text string
}

func (e *undefinedError) Error() string { return fmt.Sprintf("undefined step %q", e.text) }
func (e *undefinedError) Name() string  { return "UndefinedStepError" }

// panicError converts a value recovered from a step into a raw error whose
// stack starts at the panicking frame.
func panicError(v interface{}, stack string) *failure.Raw {
	var raw *failure.Raw
	if err, ok := v.(error); ok {
		raw = failure.FromError(err)
	} else {
		msg := fmt.Sprint(v)
		raw = &failure.Raw{Name: "panic", Message: &msg}
	}
	if raw.Stack == nil && raw.Location == nil {
		raw.Stack = &failure.Stack{Text: trimPanicStack(stack)}
	}
	return raw
}

// trimPanicStack drops the frames of a goroutine trace up to and including
// the panic call, so that the first frame is the one that panicked.
func trimPanicStack(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if strings.HasPrefix(l, "panic(") && i+2 <= len(lines) {
			return strings.Join(append(lines[:1:1], lines[i+2:]...), "\n")
		}
	}
	return text
}

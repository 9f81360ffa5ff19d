// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package runner orchestrates a single test execution: it starts a worker,
// feeds its events to an aggregator and tears the worker down.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/aggregator"
	"go.chromium.org/featrun/internal/control"
	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/engine"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/genericexec"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/reporting"
	"go.chromium.org/featrun/internal/result"
	"go.chromium.org/featrun/internal/worker"
)

const (
	defaultInvokeTimeout  = time.Minute
	defaultDisposeTimeout = 10 * time.Second
)

// State is the lifecycle state of a Runner.
type State int

const (
	Uninitialized State = iota
	Initialized
	Running
	Disposed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Disposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the parameters of a run.
type Config struct {
	// Bundle starts the worker process.
	Bundle genericexec.Cmd
	// BundleArgs are passed to the worker.
	BundleArgs []string
	// Worker is sent to the worker on init.
	Worker control.WorkerConfig

	// InvokeTimeout limits the init and dispose calls.
	InvokeTimeout time.Duration
	// DisposeTimeout is how long the worker is given to exit before it is
	// killed.
	DisposeTimeout time.Duration

	// Logger receives the logs of the worker. Logs are dropped if it is nil.
	Logger logging.Logger
	// Clock is the real clock if nil.
	Clock clock.Clock
}

// Result is the outcome of Runner.Run.
type Result struct {
	ID     string
	Suites []*result.Suite
	// Summary is what the worker reports having run. It is nil if the run
	// did not complete.
	Summary *engine.Summary
	// Commands is the number of command events seen.
	Commands int
	// Err is the error the run failed with, and Failure its classification.
	Err     error
	Failure *failure.Record
}

// Passed reports whether the run completed and every suite passed.
func (r *Result) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, s := range r.Suites {
		if s.Status != result.Passed {
			return false
		}
	}
	return true
}

// Runner runs feature files in a worker process. A Runner is used once:
// Init, Run, then Dispose.
type Runner struct {
	id string

	mu    sync.Mutex
	state State
	cfg   *Config
	caps  driver.Caps
	sink  *reporting.Sink
	agg   *aggregator.Aggregator
	ch    *worker.Channel
}

// New returns an uninitialized Runner with a fresh ID.
func New() *Runner {
	return &Runner{id: uuid.NewString()}
}

// ID returns the ID of the runner.
func (r *Runner) ID() string { return r.id }

// State returns the current state of the runner.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Init starts the worker and initializes it with cfg. caps are sent to the
// worker when the run starts. Progress is reported to sink, which may be
// nil. Init can be called only once; if it fails the runner is disposed.
func (r *Runner) Init(ctx context.Context, cfg *Config, caps driver.Caps, sink *reporting.Sink) error {
	r.mu.Lock()
	if r.state != Uninitialized {
		st := r.state
		r.mu.Unlock()
		return errors.Errorf("runner cannot be initialized in state %v", st)
	}
	r.state = Initialized
	r.mu.Unlock()

	if err := r.init(ctx, cfg, caps, sink); err != nil {
		r.Dispose(ctx)
		return err
	}
	return nil
}

func (r *Runner) init(ctx context.Context, cfg *Config, caps driver.Caps, sink *reporting.Sink) error {
	if cfg.Bundle == nil {
		return errors.New("no bundle to run")
	}
	wcfg := cfg.Worker
	specs, err := ResolveSpecFiles(wcfg.Specs, wcfg.Cwd)
	if err != nil {
		return err
	}
	if len(specs) == 0 {
		return errors.Errorf("no feature files match %q", wcfg.Specs)
	}
	wcfg.Specs = specs

	disp := event.NewDispatcher()
	agg, err := aggregator.New(ctx, disp, sink, cfg.Clock)
	if err != nil {
		return err
	}
	ch := worker.New(worker.Config{
		Cmd:        cfg.Bundle,
		Args:       cfg.BundleArgs,
		Logger:     cfg.Logger,
		Dispatcher: disp,
		Clock:      cfg.Clock,
	})

	r.mu.Lock()
	r.cfg = cfg
	r.caps = caps
	r.sink = sink
	r.agg = agg
	r.ch = ch
	r.mu.Unlock()

	if err := ch.Start(ctx); err != nil {
		return err
	}
	ictx, cancel := context.WithTimeout(ctx, r.invokeTimeout())
	defer cancel()
	if _, err := ch.Invoke(ictx, control.MethodInit, r.id, &wcfg); err != nil {
		return errors.Wrap(err, "failed to initialize worker")
	}
	logging.Debugf(ctx, "Initialized runner %s with %d feature file(s)", r.id, len(specs))
	return nil
}

func (r *Runner) invokeTimeout() time.Duration {
	if r.cfg != nil && r.cfg.InvokeTimeout > 0 {
		return r.cfg.InvokeTimeout
	}
	return defaultInvokeTimeout
}

func (r *Runner) disposeTimeout() time.Duration {
	if r.cfg != nil && r.cfg.DisposeTimeout > 0 {
		return r.cfg.DisposeTimeout
	}
	return defaultDisposeTimeout
}

// Run runs the feature files. It returns an error only if the runner is not
// initialized or has already run; failures of the run itself are reported
// to the sink and in the returned Result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.state != Initialized {
		st := r.state
		r.mu.Unlock()
		return nil, errors.Errorf("runner cannot run in state %v", st)
	}
	r.state = Running
	ch, agg, sink, caps := r.ch, r.agg, r.sink, r.caps
	r.mu.Unlock()

	sink.RunnerStart(r.id)
	res := &Result{ID: r.id}
	ret, err := ch.Invoke(ctx, control.MethodRun, caps)
	if err == nil {
		var sum engine.Summary
		if jerr := json.Unmarshal(ret, &sum); jerr != nil {
			err = errors.Wrap(jerr, "bad run result")
		} else {
			res.Summary = &sum
		}
	}
	if err != nil {
		res.Err = err
		res.Failure = failure.Classify(err, failure.Context{Command: string(control.MethodRun)})
		logging.Infof(ctx, "Run %s failed: %v", r.id, res.Failure)
	}
	res.Suites = agg.Suites()
	res.Commands = agg.CommandCount()
	sink.RunnerEnd(r.id, err)
	return res, nil
}

// Dispose tears down the worker. It is safe to call more than once and in
// any state.
func (r *Runner) Dispose(ctx context.Context) error {
	r.mu.Lock()
	if r.state == Disposed {
		r.mu.Unlock()
		return nil
	}
	r.state = Disposed
	ch := r.ch
	r.mu.Unlock()

	if ch == nil {
		return nil
	}
	if st := ch.State(); st == worker.Ready || st == worker.Running {
		ictx, cancel := context.WithTimeout(ctx, r.invokeTimeout())
		if _, err := ch.Invoke(ictx, control.MethodDispose); err != nil {
			logging.Debugf(ctx, "Worker dispose failed: %v", err)
		}
		cancel()
	}
	return ch.Dispose(ctx, r.disposeTimeout())
}

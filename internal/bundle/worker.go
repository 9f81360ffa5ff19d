// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bundle

import (
	"context"
	"encoding/json"
	"sync"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/automation"
	"go.chromium.org/featrun/internal/control"
	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/driver/mob"
	"go.chromium.org/featrun/internal/driver/web"
	"go.chromium.org/featrun/internal/engine"
	"go.chromium.org/featrun/internal/logging"
)

// Delegate customizes a bundle.
type Delegate struct {
	// Steps defines the step definitions of the bundle.
	Steps func(r *engine.Registry)
	// Modules, if set, registers extra modules to the session of a run. It
	// is called after the built-in modules are registered.
	Modules func(ctx context.Context, s *automation.Session, caps driver.Caps) error
}

// worker holds the state behind the default method handlers.
type worker struct {
	d   Delegate
	reg *engine.Registry

	mu       sync.Mutex
	runnerID string
	cfg      *control.WorkerConfig
	session  *automation.Session
}

func newWorker(d Delegate, reg *engine.Registry) *worker {
	return &worker{d: d, reg: reg}
}

// handlers returns the dispatch table of the worker.
func (w *worker) handlers() map[control.Method]Handler {
	return map[control.Method]Handler{
		control.MethodInit:    w.init,
		control.MethodRun:     w.run,
		control.MethodDispose: w.dispose,
	}
}

// init takes the runner ID and a control.WorkerConfig.
func (w *worker) init(ctx context.Context, env *Env, args []json.RawMessage) (interface{}, error) {
	var id string
	var cfg control.WorkerConfig
	if err := decodeArgs(control.MethodInit, args, &id, &cfg); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cfg != nil {
		return nil, errors.New("worker already initialized")
	}
	w.runnerID = id
	w.cfg = &cfg
	logging.Debugf(ctx, "Initialized for runner %s with %d spec file(s)", id, len(cfg.Specs))
	return nil, nil
}

// run takes the session capabilities and returns an engine.Summary.
func (w *worker) run(ctx context.Context, env *Env, args []json.RawMessage) (interface{}, error) {
	var caps driver.Caps
	if err := decodeArgs(control.MethodRun, args, &caps); err != nil {
		return nil, err
	}

	w.mu.Lock()
	cfg := w.cfg
	if cfg != nil && w.session == nil {
		w.session = automation.NewSession(env.Dispatcher, env.Clock)
	}
	s := w.session
	w.mu.Unlock()
	if cfg == nil {
		return nil, errors.New("worker not initialized")
	}

	if err := w.openModules(ctx, s, cfg, caps); err != nil {
		return nil, err
	}

	e, err := engine.New(engine.Config{
		Registry:    w.reg,
		Dispatcher:  env.Dispatcher,
		Clock:       env.Clock,
		Tags:        cfg.Tags,
		FailFast:    cfg.FailFast,
		Strict:      cfg.Strict,
		StepTimeout: cfg.StepTimeout,
	})
	if err != nil {
		return nil, err
	}
	return e.Run(automation.WithSession(ctx, s), cfg.Specs)
}

// openModules registers the built-in modules and the drivers caps ask for.
func (w *worker) openModules(ctx context.Context, s *automation.Session, cfg *control.WorkerConfig, caps driver.Caps) error {
	if _, err := automation.NewShell(s, cfg.Cwd); err != nil {
		return err
	}
	if _, err := automation.NewLog(s); err != nil {
		return err
	}
	if o, ok := web.OptionsFromCaps(caps); ok {
		if _, err := web.Open(ctx, s, o); err != nil {
			return err
		}
	}
	if o, ok := mob.OptionsFromCaps(caps); ok {
		if _, err := mob.Open(ctx, s, o); err != nil {
			return err
		}
	}
	if w.d.Modules != nil {
		if err := w.d.Modules(ctx, s, caps); err != nil {
			return err
		}
	}
	return nil
}

// dispose closes the session. It is a no-op after the first call.
func (w *worker) dispose(ctx context.Context, env *Env, args []json.RawMessage) (interface{}, error) {
	w.mu.Lock()
	s := w.session
	w.session = nil
	w.mu.Unlock()
	if s == nil {
		return nil, nil
	}
	return nil, s.Close(ctx)
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package automation provides the session step definitions use to drive
// automation modules.
//
// Every module command runs through Session.Call, which emits command events
// and classifies failures with the module and command names, so that step
// code only ever returns canonical failures.
package automation

import (
	"context"
	"fmt"
	"sync"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/result"
)

// Module is an automation module registered to a Session.
type Module interface {
	// Name returns the name commands of the module are reported under.
	Name() string
	// Close releases the resources of the module.
	Close(ctx context.Context) error
}

type transactionKey struct{}

// WithTransaction returns a context whose commands are reported under the
// transaction name.
func WithTransaction(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, transactionKey{}, name)
}

// TransactionFromContext returns the transaction attached by
// WithTransaction.
func TransactionFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(transactionKey{}).(string)
	return name, ok
}

type sessionKey struct{}

// WithSession returns a context carrying s, so that step definitions can
// reach the modules of the running session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached by WithSession.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

// Session holds the modules of a worker and the current transaction.
type Session struct {
	d   *event.Dispatcher
	clk clock.Clock

	mu      sync.Mutex
	modules map[string]Module
	order   []string // registration order
	txn     string
}

// NewSession returns a Session emitting command events to d. d may be nil.
func NewSession(d *event.Dispatcher, clk clock.Clock) *Session {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Session{d: d, clk: clk, modules: make(map[string]Module)}
}

// Register adds m to the session.
func (s *Session) Register(m Module) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := m.Name()
	if _, ok := s.modules[name]; ok {
		return errors.Errorf("module %q already registered", name)
	}
	s.modules[name] = m
	s.order = append(s.order, name)
	return nil
}

// Module returns the module registered as name. It fails with
// MODULE_NOT_INITIALIZED_ERROR if there is none.
func (s *Session) Module(name string) (Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[name]
	if !ok {
		return nil, failure.New(failure.ModuleNotInitializedError, fmt.Sprintf("Module %q is not initialized", name))
	}
	return m, nil
}

// SetTransaction sets the transaction commands are reported under when
// their context carries none.
func (s *Session) SetTransaction(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txn = name
}

// Transaction returns the current transaction.
func (s *Session) Transaction() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn
}

// Call runs fn as command of module. It emits command:before and
// command:after events, and converts an error returned by fn into a
// classified *failure.Error.
func (s *Session) Call(ctx context.Context, module, command string, fn func(ctx context.Context) error) error {
	txn, ok := TransactionFromContext(ctx)
	if !ok {
		txn = s.Transaction()
	}
	cmd := &event.Command{Module: module, Name: command, Transaction: txn}

	s.emit(&event.Event{Name: event.CommandBefore, Command: cmd})
	start := s.clk.Now()
	err := fn(ctx)

	after := &event.Event{Name: event.CommandAfter, Command: cmd}
	if err == nil {
		s.emit(after)
		return nil
	}

	rec := failure.Classify(err, failure.Context{Module: module, Command: command})
	after.Result = &event.Result{
		Status:   result.Failed,
		Duration: s.clk.Since(start),
		Error:    failure.RawFromRecord(rec),
	}
	s.emit(after)
	logging.Debugf(ctx, "%s.%s failed: %v", module, command, rec)
	return failure.AsError(rec)
}

// Close closes the registered modules in reverse registration order. It
// returns the first error encountered.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	order := s.order
	modules := s.modules
	s.order = nil
	s.modules = make(map[string]Module)
	s.mu.Unlock()

	var firstErr error
	for i := len(order) - 1; i >= 0; i-- {
		if err := modules[order[i]].Close(ctx); err != nil {
			logging.Warnf(ctx, "Failed to close module %s: %v", order[i], err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "failed to close %s", order[i])
			}
		}
	}
	return firstErr
}

func (s *Session) emit(ev *event.Event) {
	if s.d == nil {
		return
	}
	ev.Time = s.clk.Now()
	s.d.Dispatch(ev)
}

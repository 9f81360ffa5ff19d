// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/control"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/logging"
)

// Env is shared by the handlers of a Server.
type Env struct {
	// Dispatcher relays events to the orchestrator.
	Dispatcher *event.Dispatcher
	Clock      clock.Clock
}

// Handler implements a control method. args are the raw arguments of the
// invocation. The returned value is marshaled to JSON as the result.
type Handler func(ctx context.Context, env *Env, args []json.RawMessage) (interface{}, error)

// Server answers control messages read from the orchestrator.
type Server struct {
	handlers map[control.Method]Handler
	clk      clock.Clock
	level    logging.Level
}

// NewServer returns a Server dispatching to handlers. handlers must cover
// control.Methods exactly. The dispose handler also runs when the
// orchestrator asks the worker to exit, so it must be idempotent.
func NewServer(handlers map[control.Method]Handler, clk clock.Clock) (*Server, error) {
	var missing, unknown []string
	for _, m := range control.Methods {
		if h, ok := handlers[m]; !ok || h == nil {
			missing = append(missing, string(m))
		}
	}
	ms := maps.Keys(handlers)
	slices.Sort(ms)
	for _, m := range ms {
		if !m.Valid() {
			unknown = append(unknown, string(m))
		}
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("no handler for %s", strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		return nil, errors.Errorf("handlers for unknown methods %s", strings.Join(unknown, ", "))
	}
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Server{handlers: handlers, clk: clk, level: logging.LevelDebug}, nil
}

// Serve handles messages read from r and writes responses to w until r is
// closed or an exit message arrives. Every invocation runs in its own
// goroutine. On exit, running invocations are canceled, the dispose handler
// runs and Serve returns the status carried by the exit message.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) int {
	mw := control.NewMessageWriter(w)

	logger := logging.NewFuncLogger(func(level logging.Level, ts time.Time, msg string) {
		if level < s.level {
			return
		}
		mw.WriteMessage(&control.Log{Time: ts, Level: level.String(), Msg: msg, Src: "worker"})
	})
	ctx = logging.AttachLogger(ctx, logger)

	disp := event.NewDispatcher()
	disp.SubscribeAll(func(ev *event.Event) {
		if err := mw.WriteMessage(&control.Event{Event: ev}); err != nil {
			logging.Debugf(ctx, "Failed to relay %v: %v", ev.Name, err)
		}
	})
	env := &Env{Dispatcher: disp, Clock: s.clk}

	ictx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	status := 0
	mr := control.NewMessageReader(r)
loop:
	for {
		msg, err := mr.ReadMessage()
		if err == io.EOF {
			logging.Debug(ctx, "Control stream closed")
			break
		}
		if errors.Is(err, control.ErrUnknownType) {
			logging.Debugf(ctx, "Ignoring message: %v", err)
			continue
		}
		if err != nil {
			logging.Warnf(ctx, "Broken control stream: %v", err)
			status = statusError
			break
		}

		switch m := msg.(type) {
		case *control.Invoke:
			g.Go(func() error {
				s.invoke(ictx, env, mw, m)
				return nil
			})
		case *control.Exit:
			status = m.Status
			break loop
		default:
			logging.Debugf(ctx, "Ignoring unexpected %T message", msg)
		}
	}

	cancel()
	g.Wait()
	if _, err := s.call(ctx, env, control.MethodDispose, nil); err != nil {
		logging.Warnf(ctx, "Failed to dispose: %v", err)
	}
	return status
}

// setLevel sets the minimum level of relayed logs.
func (s *Server) setLevel(level logging.Level) {
	s.level = level
}

func (s *Server) invoke(ctx context.Context, env *Env, mw *control.MessageWriter, m *control.Invoke) {
	res := &control.InvokeResult{CallID: m.CallID, Method: m.Method}
	ret, err := s.call(ctx, env, m.Method, m.Args)
	if err == nil && ret != nil {
		b, merr := json.Marshal(ret)
		if merr != nil {
			err = errors.Wrapf(merr, "failed to marshal result of %s", m.Method)
		} else {
			res.Retval = b
		}
	}
	if err != nil {
		res.Error = failure.FromError(err)
	}
	if err := mw.WriteMessage(res); err != nil {
		logging.Debugf(ctx, "Failed to send result of %s (call %d): %v", m.Method, m.CallID, err)
	}
}

// call runs the handler of method, converting a panic into an error.
func (s *Server) call(ctx context.Context, env *Env, method control.Method, args []json.RawMessage) (ret interface{}, err error) {
	h, ok := s.handlers[method]
	if !ok {
		return nil, &control.UnknownMethodError{Method: method}
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic in %s: %v", method, r)
		}
	}()
	return h(ctx, env, args)
}

// decodeArgs unmarshals args into dsts in order. Missing trailing arguments
// leave their destinations untouched.
func decodeArgs(method control.Method, args []json.RawMessage, dsts ...interface{}) error {
	if len(args) > len(dsts) {
		return failure.New(failure.ParametersError, fmt.Sprintf("%s takes at most %d arguments; got %d", method, len(dsts), len(args)))
	}
	for i, a := range args {
		if err := json.Unmarshal(a, dsts[i]); err != nil {
			return failure.New(failure.ParametersError, fmt.Sprintf("bad argument %d of %s: %v", i, method, err))
		}
	}
	return nil
}

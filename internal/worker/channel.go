// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package worker runs a test engine in a separate process and talks to it
// over the control protocol.
package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"golang.org/x/sync/errgroup"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/command"
	"go.chromium.org/featrun/internal/control"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/genericexec"
	"go.chromium.org/featrun/internal/logging"
)

// Config holds the parameters of a Channel.
type Config struct {
	// Cmd starts the worker process.
	Cmd genericexec.Cmd
	// Args are extra arguments passed to the worker.
	Args []string
	// Logger receives logs relayed from the worker as well as the worker's
	// stderr. Logs are dropped if it is nil.
	Logger logging.Logger
	// Dispatcher receives events relayed from the worker. Events are
	// dropped if it is nil.
	Dispatcher *event.Dispatcher
	// Clock measures the dispose timeout. The real clock is used if it is nil.
	Clock clock.Clock
}

// drainTimeout bounds how long the worker's output is read after the process
// exited, and how long the process may live on after closing its output.
const drainTimeout = 2 * time.Second

type outcome struct {
	res *control.InvokeResult
	err error
}

// Channel is a connection to a single worker process.
//
// Invoke may be called concurrently; results are matched to calls by their
// call ID. Messages from the worker are handled by a single goroutine in the
// order they arrive.
type Channel struct {
	cfg Config
	clk clock.Clock

	mu      sync.Mutex
	state   State
	nextID  uint64
	pending map[uint64]chan outcome
	exitErr *ProcessExitError // non-nil once the process exited

	proc   genericexec.Process
	cancel context.CancelFunc
	mw     *control.MessageWriter

	exited   chan struct{} // closed once the process exited and pending calls settled
	disposed chan struct{} // closed once Dispose finished
}

// New returns a Channel that has not started its worker yet.
func New(cfg Config) *Channel {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Channel{
		cfg:      cfg,
		clk:      clk,
		pending:  make(map[uint64]chan outcome),
		exited:   make(chan struct{}),
		disposed: make(chan struct{}),
	}
}

// State returns the current state of the channel.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start spawns the worker process. It returns a *SpawnError if the process
// could not be created.
func (c *Channel) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != NotStarted {
		st := c.state
		c.mu.Unlock()
		return errors.Errorf("worker cannot start in state %v", st)
	}
	c.state = Starting
	c.mu.Unlock()

	// The process outlives ctx; it is only killed by Dispose.
	pctx, cancel := context.WithCancel(context.Background())
	proc, err := c.cfg.Cmd.Interact(pctx, c.cfg.Args)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.state = Terminated
		close(c.exited)
		c.mu.Unlock()
		return &SpawnError{Err: err}
	}

	c.mu.Lock()
	c.proc = proc
	c.cancel = cancel
	c.mw = control.NewMessageWriter(proc.Stdin())
	c.state = Ready
	c.mu.Unlock()

	transportClosed := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		defer close(transportClosed)
		c.readMessages(proc.Stdout())
		return nil
	})
	g.Go(func() error {
		c.relayStderr(proc.Stderr())
		return nil
	})
	exited := make(chan int, 1)
	go func() {
		exited <- genericexec.ExitCode(proc.Wait(pctx))
	}()
	go c.watch(proc, &g, transportClosed, exited)

	logging.Debugf(ctx, "Started worker (pid %d)", proc.Pid())
	return nil
}

// Invoke calls method in the worker with args and waits for its result.
//
// args are marshaled to JSON. Invoke returns a *RemoteError if the method
// failed in the worker, a *ProcessExitError if the worker exited before
// answering, and ctx.Err() if ctx is done first. Methods outside
// control.Methods are rejected with *control.UnknownMethodError without
// contacting the worker.
func (c *Channel) Invoke(ctx context.Context, method control.Method, args ...interface{}) (json.RawMessage, error) {
	if !method.Valid() {
		return nil, &control.UnknownMethodError{Method: method}
	}
	rawArgs := make([]json.RawMessage, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal argument %d of %s", i, method)
		}
		rawArgs[i] = b
	}

	id, ch, err := c.register(method)
	if err != nil {
		return nil, err
	}

	// A failed write means the worker is gone; the exit handler settles the call.
	if err := c.mw.WriteMessage(&control.Invoke{CallID: id, Method: method, Args: rawArgs}); err != nil {
		c.log(logging.LevelDebug, "Failed to send %s (call %d): %v", method, id, err)
	}

	select {
	case o := <-ch:
		if o.err != nil {
			return nil, o.err
		}
		if o.res.Error != nil {
			return nil, &RemoteError{Method: method, Raw: o.res.Error}
		}
		return o.res.Retval, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// register allocates a call ID for method and records it as pending.
func (c *Channel) register(method control.Method) (uint64, chan outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.exitErr != nil {
		return 0, nil, c.exitErr
	}
	switch c.state {
	case Ready:
		if method == control.MethodRun {
			c.state = Running
		}
	case Running:
		if method == control.MethodRun {
			return 0, nil, errors.New("worker has already run")
		}
	default:
		return 0, nil, errors.Errorf("cannot invoke %s: worker is %v", method, c.state)
	}

	c.nextID++
	ch := make(chan outcome, 1)
	c.pending[c.nextID] = ch
	return c.nextID, ch, nil
}

// Dispose asks the worker to exit and waits up to timeout for it. If the
// worker is still alive after that, or ctx is done, its process tree is
// killed. Dispose returns after all pending calls have settled. It is safe
// to call Dispose more than once and before Start.
func (c *Channel) Dispose(ctx context.Context, timeout time.Duration) error {
	c.mu.Lock()
	switch c.state {
	case NotStarted:
		c.state = Terminated
		close(c.disposed)
		c.mu.Unlock()
		return nil
	case Starting:
		c.mu.Unlock()
		return errors.New("worker is starting")
	case Disposing:
		c.mu.Unlock()
		<-c.disposed
		return nil
	case Terminated:
		c.mu.Unlock()
		select {
		case <-c.disposed:
		default:
			c.finishDispose()
		}
		return nil
	}
	c.state = Disposing
	c.mu.Unlock()

	if err := c.mw.WriteMessage(&control.Exit{}); err != nil {
		c.log(logging.LevelDebug, "Failed to send exit: %v", err)
	}
	c.proc.Stdin().Close()

	tm := c.clk.NewTimer(timeout)
	defer tm.Stop()

	var killErr error
	select {
	case <-c.exited:
	case <-tm.C():
		logging.Warnf(ctx, "Worker did not exit within %v; killing it", timeout)
		killErr = c.kill()
	case <-ctx.Done():
		killErr = c.kill()
	}
	<-c.exited

	c.finishDispose()
	if killErr != nil {
		return errors.Wrap(killErr, "failed to kill worker")
	}
	return nil
}

func (c *Channel) finishDispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Terminated
	select {
	case <-c.disposed:
	default:
		close(c.disposed)
	}
}

// kill force-terminates the worker and its descendants.
func (c *Channel) kill() error {
	err := command.KillTree(c.proc.Pid())
	c.cancel()
	return err
}

// readMessages handles messages from the worker until its stdout is closed.
func (c *Channel) readMessages(r io.Reader) {
	mr := control.NewMessageReader(r)
	for {
		msg, err := mr.ReadMessage()
		if err == io.EOF || errors.Is(err, os.ErrClosed) {
			return
		}
		if errors.Is(err, control.ErrUnknownType) {
			c.log(logging.LevelDebug, "Ignoring message from worker: %v", err)
			continue
		}
		if err != nil {
			c.log(logging.LevelWarn, "Broken message stream from worker: %v", err)
			// Drain the rest of the stream.
			io.Copy(io.Discard, r)
			return
		}

		switch m := msg.(type) {
		case *control.InvokeResult:
			c.resolve(m)
		case *control.Log:
			c.relayLog(m)
		case *control.Event:
			if c.cfg.Dispatcher != nil {
				c.cfg.Dispatcher.Dispatch(m.Event)
			}
		default:
			c.log(logging.LevelDebug, "Ignoring unexpected %T message from worker", msg)
		}
	}
}

func (c *Channel) resolve(res *control.InvokeResult) {
	c.mu.Lock()
	ch, ok := c.pending[res.CallID]
	delete(c.pending, res.CallID)
	c.mu.Unlock()

	if !ok {
		c.log(logging.LevelDebug, "Dropping result of unknown call %d (%s)", res.CallID, res.Method)
		return
	}
	ch <- outcome{res: res}
}

func (c *Channel) relayLog(m *control.Log) {
	if c.cfg.Logger == nil {
		return
	}
	msg := m.Msg
	if m.Src != "" {
		msg = fmt.Sprintf("[%s] %s", m.Src, msg)
	}
	if m.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, m.Err.Error())
	}
	ts := m.Time
	if ts.IsZero() {
		ts = c.clk.Now()
	}
	c.cfg.Logger.Log(logging.ParseLevel(m.Level), ts, msg)
}

func (c *Channel) relayStderr(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		c.log(logging.LevelDebug, "worker: %s", strings.TrimRight(sc.Text(), "\r"))
	}
	io.Copy(io.Discard, r)
}

// watch settles pending calls when the worker exits or closes its stdout,
// whichever comes first, and marks the channel terminated once the process
// is gone.
func (c *Channel) watch(proc genericexec.Process, readers *errgroup.Group, transportClosed <-chan struct{}, exited <-chan int) {
	readersDone := make(chan struct{})
	go func() {
		readers.Wait()
		close(readersDone)
	}()

	var status int
	select {
	case status = <-exited:
	case <-transportClosed:
		select {
		case status = <-exited:
		case <-c.clk.After(drainTimeout):
			c.log(logging.LevelWarn, "Worker closed its output but is still running")
			c.settle(&ProcessExitError{Status: -1})
			status = <-exited
		}
	}

	// Let the readers handle what the worker wrote before exiting. Output
	// held open by descendants is abandoned after a grace period.
	select {
	case <-readersDone:
	case <-c.clk.After(drainTimeout):
		c.log(logging.LevelDebug, "Worker output still open after exit; closing it")
	}
	proc.Stdout().Close()
	proc.Stderr().Close()
	<-readersDone
	c.onExit(status)
}

// settle rejects every pending call and all later calls with err.
func (c *Channel) settle(err *ProcessExitError) {
	c.mu.Lock()
	pending := c.swapPending(err)
	c.mu.Unlock()
	reject(pending, err)
}

// onExit settles every pending call once the worker process has exited.
func (c *Channel) onExit(status int) {
	err := &ProcessExitError{Status: status}

	c.mu.Lock()
	pending := c.swapPending(err)
	unexpected := c.state != Disposing
	c.state = Terminated
	c.mu.Unlock()

	reject(pending, err)
	if unexpected {
		c.log(logging.LevelWarn, "Worker exited unexpectedly with status %d", status)
	}
	close(c.exited)
}

// swapPending records err as the exit error and takes the pending calls.
// c.mu must be held.
func (c *Channel) swapPending(err *ProcessExitError) map[uint64]chan outcome {
	c.exitErr = err
	pending := c.pending
	c.pending = make(map[uint64]chan outcome)
	return pending
}

func reject(pending map[uint64]chan outcome, err error) {
	for _, ch := range pending {
		ch <- outcome{err: err}
	}
}

func (c *Channel) log(level logging.Level, format string, args ...interface{}) {
	if c.cfg.Logger == nil {
		return
	}
	c.cfg.Logger.Log(level, c.clk.Now(), fmt.Sprintf(format, args...))
}

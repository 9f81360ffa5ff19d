// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package genericexec

import (
	"context"
	"io"
	"os"
	"os/exec"

	"go.chromium.org/featrun/errors"
)

// ExecCmd is a Cmd running a local executable.
type ExecCmd struct {
	path string
	args []string
	env  []string
	dir  string
}

var _ Cmd = &ExecCmd{}

// CommandExec returns an ExecCmd running path with args.
func CommandExec(path string, args ...string) *ExecCmd {
	return &ExecCmd{path: path, args: args}
}

// WithEnv returns a copy of c that adds env, in "key=value" form, to the
// environment inherited from the current process.
func (c *ExecCmd) WithEnv(env ...string) *ExecCmd {
	nc := *c
	nc.env = append(append([]string(nil), c.env...), env...)
	return &nc
}

// WithDir returns a copy of c that runs in dir.
func (c *ExecCmd) WithDir(dir string) *ExecCmd {
	nc := *c
	nc.dir = dir
	return &nc
}

// Interact starts the executable. See Cmd.Interact for details.
func (c *ExecCmd) Interact(ctx context.Context, extraArgs []string) (Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	args := append(append([]string(nil), c.args...), extraArgs...)
	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = c.dir
	if len(c.env) > 0 {
		cmd.Env = append(os.Environ(), c.env...)
	}

	p := &ExecProcess{cmd: cmd, cancel: cancel}
	childEnds, err := p.pipe()
	defer func() {
		for _, f := range childEnds {
			f.Close()
		}
	}()
	if err != nil {
		cancel()
		p.closeOutput()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		p.closeOutput()
		return nil, errors.Wrapf(err, "failed to start %s", c.path)
	}
	return p, nil
}

// ExecProcess is a Process started by ExecCmd.
type ExecProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

var _ Process = &ExecProcess{}

// pipe connects the standard streams of the command. Output goes through
// os.Pipe rather than exec.Cmd.StdoutPipe so that Wait neither waits for
// nor closes the read ends, which may be held open by descendants. The
// returned write ends belong to the child and are closed once it started.
func (p *ExecProcess) pipe() (childEnds []*os.File, err error) {
	if p.stdin, err = p.cmd.StdinPipe(); err != nil {
		return nil, err
	}
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	p.stdout, p.cmd.Stdout = stdout, stdoutW
	childEnds = append(childEnds, stdoutW)

	stderr, stderrW, err := os.Pipe()
	if err != nil {
		return childEnds, err
	}
	p.stderr, p.cmd.Stderr = stderr, stderrW
	return append(childEnds, stderrW), nil
}

func (p *ExecProcess) closeOutput() {
	for _, f := range []io.Closer{p.stdout, p.stderr} {
		if f != nil {
			f.Close()
		}
	}
}

func (p *ExecProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *ExecProcess) Stdout() io.ReadCloser { return p.stdout }
func (p *ExecProcess) Stderr() io.ReadCloser { return p.stderr }
func (p *ExecProcess) Pid() int              { return p.cmd.Process.Pid }

// Wait waits for the process to exit. See Process.Wait for details.
// Stdout and Stderr stay open.
func (p *ExecProcess) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.cancel)
	defer stop()
	defer p.cancel()
	return p.cmd.Wait()
}

// ExitCode returns the exit status described by err, an error returned by
// Process.Wait: 0 if err is nil, the status if the process exited, and -1
// otherwise, e.g. if it was killed by a signal.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var xerr *exec.ExitError
	if errors.As(err, &xerr) {
		return xerr.ExitCode()
	}
	return -1
}

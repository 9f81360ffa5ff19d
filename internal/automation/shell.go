// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package automation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"golang.org/x/sync/errgroup"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/genericexec"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/shutil"
)

// ShellModule is the name of the shell module.
const ShellModule = "shell"

// Shell runs commands through the system shell.
type Shell struct {
	s   *Session
	dir string
}

// NewShell returns a shell module running commands in dir and registers it
// to s.
func NewShell(s *Session, dir string) (*Shell, error) {
	sh := &Shell{s: s, dir: dir}
	if err := s.Register(sh); err != nil {
		return nil, err
	}
	return sh, nil
}

// Name implements Module.
func (*Shell) Name() string { return ShellModule }

// Close implements Module.
func (*Shell) Close(ctx context.Context) error { return nil }

// ExitError describes a command that exited with a non-zero status.
type ExitError struct {
	Command string
	Status  int
	Output  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Command, e.Status)
}

// Exec runs command with "sh -c" and returns its stdout followed by its
// stderr. A non-zero exit status fails the command; the output is returned
// regardless.
func (sh *Shell) Exec(ctx context.Context, command string) (string, error) {
	var out string
	err := sh.s.Call(ctx, ShellModule, "exec", func(ctx context.Context) error {
		var err error
		out, err = sh.run(ctx, command)
		return err
	})
	return out, err
}

// ExecArgs is similar to Exec, but escapes each of args as a separate shell
// word.
func (sh *Shell) ExecArgs(ctx context.Context, args ...string) (string, error) {
	return sh.Exec(ctx, shutil.EscapeSlice(args))
}

func (sh *Shell) run(ctx context.Context, command string) (string, error) {
	logging.Debugf(ctx, "Running %s", shutil.EscapeSlice([]string{"sh", "-c", command}))
	proc, err := genericexec.CommandExec("sh", "-c").WithDir(sh.dir).Interact(ctx, []string{command})
	if err != nil {
		return "", errors.Wrap(err, "failed to start shell")
	}
	proc.Stdin().Close()
	defer proc.Stdout().Close()
	defer proc.Stderr().Close()

	var stdout, stderr bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stdout, proc.Stdout())
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(&stderr, proc.Stderr())
		return err
	})
	readErr := g.Wait()
	waitErr := proc.Wait(ctx)

	out := stdout.String() + stderr.String()
	var xerr *exec.ExitError
	if errors.As(waitErr, &xerr) {
		return out, &ExitError{Command: command, Status: xerr.ExitCode(), Output: out}
	}
	if waitErr != nil {
		return out, waitErr
	}
	if readErr != nil {
		return out, errors.Wrap(readErr, "failed to read output")
	}
	return out, nil
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package genericexec starts the processes featrun talks to over their
// standard streams: worker bundles and shell commands.
package genericexec

import (
	"context"
	"io"
)

// Cmd is a command that can be started with its standard streams piped.
type Cmd interface {
	// Interact starts the command with extraArgs appended to its base
	// arguments. The process is killed when ctx is done.
	Interact(ctx context.Context, extraArgs []string) (Process, error)
}

// Process is a running process started by Cmd.Interact.
type Process interface {
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
	Stderr() io.ReadCloser
	Pid() int

	// Wait waits for the process to exit and releases its resources. It
	// must be called once. It returns as soon as the process exits, even
	// if its descendants still hold stdout or stderr; both stay readable
	// and are closed by the caller. The process is killed when ctx is
	// done. The returned error can be passed to ExitCode.
	Wait(ctx context.Context) error
}

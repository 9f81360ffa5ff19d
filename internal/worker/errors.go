// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package worker

import (
	"fmt"

	"go.chromium.org/featrun/internal/control"
	"go.chromium.org/featrun/internal/failure"
)

// SpawnError is returned by Channel.Start if the worker process could not be
// created.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to spawn worker: %v", e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProcessExitError is returned by Channel.Invoke if the worker process
// exited before answering.
type ProcessExitError struct {
	// Status is the exit status of the worker, or -1 if it was killed by a
	// signal or closed its output without exiting.
	Status int
}

func (e *ProcessExitError) Error() string {
	return fmt.Sprintf("worker exited with status %d", e.Status)
}

// RemoteError is returned by Channel.Invoke if the invoked method failed in
// the worker. The raw error is left unclassified.
type RemoteError struct {
	Method control.Method
	Raw    *failure.Raw
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed in worker: %s", e.Method, e.Raw.Error())
}

// Unwrap returns the raw error so that the failure classifier sees it.
func (e *RemoteError) Unwrap() error {
	return e.Raw
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package worker

// State is the lifecycle state of a Channel. States only move forward.
type State int

const (
	// NotStarted is the state of a new Channel.
	NotStarted State = iota
	// Starting means that the worker process is being spawned.
	Starting
	// Ready means that the worker process accepts invocations.
	Ready
	// Running means that the run method has been invoked. A worker runs at
	// most once, so it never goes back to Ready.
	Running
	// Disposing means that the worker has been asked to exit.
	Disposing
	// Terminated means that the worker process is gone.
	Terminated
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Starting:
		return "Starting"
	case Ready:
		return "Ready"
	case Running:
		return "Running"
	case Disposing:
		return "Disposing"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

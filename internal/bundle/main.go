// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package bundle implements the worker side of the control protocol. A
// bundle is an executable that parses feature files and runs them against
// its step definitions on behalf of a runner.
package bundle

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/featrun/internal/command"
	"go.chromium.org/featrun/internal/engine"
	"go.chromium.org/featrun/internal/logging"
)

const (
	statusSuccess  = 0 // bundle ran successfully
	statusError    = 1 // unclassified runtime error was encountered
	statusBadArgs  = 2 // bad command-line flags or other args were supplied
	statusBadSteps = 3 // errors in step registration (bad patterns, duplicates, etc.)
)

// disposeTimeout bounds the cleanup done on a signal.
const disposeTimeout = 10 * time.Second

// Main runs a bundle reading control messages from stdin and writing them
// to stdout. Diagnostics go to stderr. The caller should exit with the
// returned status code.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer, d Delegate) int {
	srv, w, err := newBundle(args, stderr, d)
	if err != nil {
		return command.ExitStatus(stderr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	command.InstallSignalHandler(stderr, func(os.Signal) {
		cancel()
		dctx, dcancel := context.WithTimeout(context.Background(), disposeTimeout)
		defer dcancel()
		w.dispose(dctx, nil, nil)
	})
	return srv.Serve(ctx, stdin, stdout)
}

// newBundle parses args and sets up the server of a bundle.
func newBundle(args []string, stderr io.Writer, d Delegate) (*Server, *worker, error) {
	fs := flag.NewFlagSet("bundle", flag.ContinueOnError)
	fs.SetOutput(stderr)
	level := fs.String("log_level", "debug", "minimum level of relayed logs (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return nil, nil, command.Exitf(statusBadArgs, "%v", err)
	}
	if fs.NArg() > 0 {
		return nil, nil, command.Exitf(statusBadArgs, "unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	reg := engine.NewRegistry()
	if d.Steps != nil {
		d.Steps(reg)
	}
	if errs := reg.RegistrationErrors(); len(errs) > 0 {
		es := make([]string, len(errs))
		for i, err := range errs {
			es[i] = err.Error()
		}
		return nil, nil, command.Exitf(statusBadSteps, "error(s) in step definitions: %v", strings.Join(es, ", "))
	}

	w := newWorker(d, reg)
	srv, err := NewServer(w.handlers(), clock.NewClock())
	if err != nil {
		return nil, nil, err
	}
	srv.setLevel(logging.ParseLevel(*level))
	return srv, w, nil
}

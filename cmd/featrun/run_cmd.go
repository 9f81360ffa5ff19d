// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"go.chromium.org/featrun/internal/config"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/reporting"
	"go.chromium.org/featrun/internal/runner"
)

// signalDisposeTimeout limits the cleanup done by the signal handler.
const signalDisposeTimeout = 5 * time.Second

// runCmd implements subcommands.Command to support running feature files.
type runCmd struct {
	cfg      config.Config
	verbose  bool
	jsonPath string

	out      io.Writer
	cleanups *cleanups
}

var _ = subcommands.Command(&runCmd{})

func newRunCmd(out io.Writer, cl *cleanups) *runCmd {
	return &runCmd{out: out, cleanups: cl}
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run feature files" }
func (*runCmd) Usage() string {
	return `Usage: run [flag]... [spec]...

Description:
    Runs the scenarios of the feature files in a worker bundle.
    Exits with 0 only if every scenario passed.

Spec:
    Specs are feature file paths or glob patterns, relative to -cwd. "**"
    matches any number of directories. Specs are read from the -config
    file if none are given. Example:

        $ featrun run -config featrun.yaml 'features/**/*.feature'

Flag:
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.verbose, "verbose", false, "use verbose logging")
	f.StringVar(&r.jsonPath, "json", "", "file to write the results to as JSON")
	r.cfg.SetFlags(f)
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	level := logging.LevelInfo
	if r.verbose {
		level = logging.LevelDebug
	}
	lg := logging.NewWriterLogger(r.out, level, true)
	ctx = logging.AttachLogger(ctx, lg)

	r.cfg.Specs = f.Args()
	if err := r.cfg.ApplyFile(f); err != nil {
		logging.Info(ctx, "Failed to read config: ", err)
		return subcommands.ExitUsageError
	}
	if err := r.cfg.DeriveDefaults(); err != nil {
		logging.Info(ctx, "Failed to derive defaults: ", err)
		return subcommands.ExitUsageError
	}
	logging.Debugf(ctx, "Using bundle %s in %s", r.cfg.Bundle, r.cfg.Cwd)

	console := reporting.NewConsole(lg, nil)
	rn := runner.New()
	if r.cleanups != nil {
		remove := r.cleanups.add(func() {
			dctx, cancel := context.WithTimeout(context.Background(), signalDisposeTimeout)
			defer cancel()
			rn.Dispose(dctx)
		})
		defer remove()
	}

	if err := rn.Init(ctx, r.cfg.Runner(lg, nil), r.cfg.Capabilities, console.Sink()); err != nil {
		logging.Info(ctx, "Failed to start worker: ", err)
		return subcommands.ExitFailure
	}
	defer func() {
		if err := rn.Dispose(ctx); err != nil {
			logging.Info(ctx, "Failed to dispose worker: ", err)
		}
	}()

	res, err := rn.Run(ctx)
	if err != nil {
		logging.Info(ctx, "Failed to run: ", err)
		return subcommands.ExitFailure
	}

	if r.jsonPath != "" {
		if err := writeJSON(r.jsonPath, console); err != nil {
			logging.Info(ctx, "Failed to write results: ", err)
			return subcommands.ExitFailure
		}
	}

	if sum := console.Summary(); !res.Passed() || !sum.OK() {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func writeJSON(path string, c *reporting.Console) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config holds the configuration of a featrun run, read from flags
// and an optional YAML file.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/clock"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/command"
	"go.chromium.org/featrun/internal/control"
	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/genericexec"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/internal/runner"
	"go.chromium.org/featrun/shutil"
)

const (
	defaultBundleName     = "feature_bundle" // worker executable looked up next to featrun
	defaultInvokeTimeout  = time.Minute
	defaultDisposeTimeout = 10 * time.Second
)

// Config contains the configuration of a run.
type Config struct {
	// ConfigFile is the YAML file read by ApplyFile.
	ConfigFile string

	// Specs are feature files or glob patterns, relative to Cwd.
	Specs []string
	// Cwd is the directory specs are resolved against and the worker runs in.
	Cwd string
	// Bundle is the worker executable.
	Bundle string
	// BundleArgs are extra arguments passed to Bundle.
	BundleArgs []string

	// StepTimeout limits a single step. Zero means no limit.
	StepTimeout time.Duration
	// Tags are tag expressions scenarios must satisfy.
	Tags []string
	// FailFast stops the run after the first failed scenario.
	FailFast bool
	// Strict reports undefined steps as failed.
	Strict bool

	// Capabilities are sent to the worker when the run starts.
	Capabilities driver.Caps

	InvokeTimeout  time.Duration
	DisposeTimeout time.Duration
}

// funcValue implements flag.Value.
type funcValue func(string) error

func (f funcValue) Set(s string) error { return f(s) }
func (f funcValue) String() string     { return "" }

// SetFlags adds common run-related flags to f that store values in c.
func (c *Config) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ConfigFile, "config", "", "YAML file to read the configuration from; flags take precedence")
	f.StringVar(&c.Cwd, "cwd", "", "directory specs are resolved against (default: current directory)")
	f.StringVar(&c.Bundle, "bundle", "", fmt.Sprintf("worker executable (default: %s next to this executable)", defaultBundleName))
	f.Var(funcValue(func(s string) error {
		args, err := shutil.Split(s)
		if err != nil {
			return err
		}
		c.BundleArgs = args
		return nil
	}), "bundleargs", "extra arguments passed to the worker, split as a shell would")
	f.Var(command.NewDurationFlag(time.Second, &c.StepTimeout, 0), "timeout", "per-step timeout in seconds (0 for none)")
	f.Var(command.NewListFlag(",", func(v []string) { c.Tags = v }, nil), "tags", "comma-separated tag expressions, e.g. @smoke,not @wip")
	f.BoolVar(&c.FailFast, "failfast", false, "stop after the first failed scenario")
	f.BoolVar(&c.Strict, "strict", false, "fail scenarios with undefined steps")
	f.Var(command.NewDurationFlag(time.Second, &c.InvokeTimeout, defaultInvokeTimeout), "invoketimeout", "timeout in seconds for worker init and dispose calls")
	f.Var(command.NewDurationFlag(time.Second, &c.DisposeTimeout, defaultDisposeTimeout), "disposetimeout", "seconds the worker is given to exit before it is killed")
}

// ApplyFile reads c.ConfigFile, if set, and copies its values into c. Values
// of flags that were set explicitly in f are kept. Relative paths in the
// file are resolved against the directory containing it.
func (c *Config) ApplyFile(f *flag.FlagSet) error {
	if c.ConfigFile == "" {
		return nil
	}
	fc, err := readFile(c.ConfigFile)
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.ConfigFile)
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}

	visited := make(map[string]bool)
	if f != nil {
		f.Visit(func(fl *flag.Flag) { visited[fl.Name] = true })
	}
	apply := func(name string, set bool, assign func()) {
		if set && !visited[name] {
			assign()
		}
	}

	apply("cwd", fc.Cwd != "", func() { c.Cwd = abs(fc.Cwd) })
	if c.Cwd == "" {
		c.Cwd = dir
	}
	apply("bundle", fc.Bundle != "", func() { c.Bundle = abs(fc.Bundle) })
	if fc.BundleArgs != "" && !visited["bundleargs"] {
		args, err := shutil.Split(fc.BundleArgs)
		if err != nil {
			return errors.Wrapf(err, "%s: bad bundleArgs", c.ConfigFile)
		}
		c.BundleArgs = args
	}
	fw := fc.Framework
	apply("timeout", fw.Timeout != 0, func() { c.StepTimeout = time.Duration(fw.Timeout) })
	apply("tags", len(fw.Tags) > 0, func() { c.Tags = fw.Tags })
	apply("failfast", fw.FailFast, func() { c.FailFast = true })
	apply("strict", fw.Strict, func() { c.Strict = true })
	apply("invoketimeout", fc.InvokeTimeout != 0, func() { c.InvokeTimeout = time.Duration(fc.InvokeTimeout) })
	apply("disposetimeout", fc.DisposeTimeout != 0, func() { c.DisposeTimeout = time.Duration(fc.DisposeTimeout) })

	if len(c.Specs) == 0 {
		c.Specs = fc.Specs
	}
	if fc.Capabilities != nil {
		caps := make(driver.Caps)
		for k, v := range fc.Capabilities {
			caps[k] = v
		}
		for k, v := range c.Capabilities {
			caps[k] = v
		}
		c.Capabilities = caps
	}
	return nil
}

// DeriveDefaults sets default values for unset members of c and validates
// the result.
func (c *Config) DeriveDefaults() error {
	if len(c.Specs) == 0 {
		return errors.New("no feature files specified")
	}
	if c.Cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		c.Cwd = wd
	}
	cwd, err := filepath.Abs(c.Cwd)
	if err != nil {
		return err
	}
	c.Cwd = cwd
	if c.Bundle == "" {
		exe, err := os.Executable()
		if err != nil {
			return errors.Wrap(err, "failed to locate the default bundle")
		}
		c.Bundle = filepath.Join(filepath.Dir(exe), defaultBundleName)
	} else if strings.ContainsRune(c.Bundle, filepath.Separator) && !filepath.IsAbs(c.Bundle) {
		// The worker runs in Cwd, so a relative path would be resolved there.
		if c.Bundle, err = filepath.Abs(c.Bundle); err != nil {
			return err
		}
	}
	if c.InvokeTimeout <= 0 {
		c.InvokeTimeout = defaultInvokeTimeout
	}
	if c.DisposeTimeout <= 0 {
		c.DisposeTimeout = defaultDisposeTimeout
	}
	if c.StepTimeout < 0 {
		return errors.Errorf("negative step timeout %v", c.StepTimeout)
	}
	if c.Capabilities == nil {
		c.Capabilities = make(driver.Caps)
	}
	return nil
}

// Runner returns the runner configuration for c. Worker logs go to lg.
func (c *Config) Runner(lg logging.Logger, clk clock.Clock) *runner.Config {
	return &runner.Config{
		Bundle:     genericexec.CommandExec(c.Bundle).WithDir(c.Cwd),
		BundleArgs: c.BundleArgs,
		Worker: control.WorkerConfig{
			Specs:       c.Specs,
			Cwd:         c.Cwd,
			Tags:        c.Tags,
			FailFast:    c.FailFast,
			Strict:      c.Strict,
			StepTimeout: c.StepTimeout,
		},
		InvokeTimeout:  c.InvokeTimeout,
		DisposeTimeout: c.DisposeTimeout,
		Logger:         lg,
		Clock:          clk,
	}
}

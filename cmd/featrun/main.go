// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the featrun executable, used to run feature files
// against a worker bundle.
package main

import (
	"context"
	"flag"
	"os"
	"sync"

	"github.com/google/subcommands"
	"golang.org/x/term"

	"go.chromium.org/featrun/internal/command"
)

// Version is the version info of this command. It is filled in at build time.
var Version = "<unknown>"

// cleanups holds functions the signal handler runs before the process exits.
type cleanups struct {
	mu  sync.Mutex
	fns map[int]func()
	id  int
}

// add registers f and returns a function that unregisters it.
func (c *cleanups) add(f func()) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fns == nil {
		c.fns = make(map[int]func())
	}
	id := c.id
	c.id++
	c.fns[id] = f
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.fns, id)
	}
}

func (c *cleanups) run() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.fns))
	for _, f := range c.fns {
		fns = append(fns, f)
	}
	c.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

// installSignalHandler disposes running workers and restores the terminal
// when the process is terminated by a signal, which prevents deferred
// functions from running.
func installSignalHandler(cl *cleanups) {
	var st *term.State
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		st, _ = term.GetState(fd)
	}
	command.InstallSignalHandler(os.Stderr, func(os.Signal) {
		cl.run()
		if st != nil {
			term.Restore(fd, st)
		}
	})
}

// doMain returns the exit status instead of exiting so that deferred calls
// run.
func doMain() int {
	cl := &cleanups{}
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(newRunCmd(os.Stdout, cl), "")
	subcommands.Register(&versionCmd{out: os.Stdout}, "")
	flag.Parse()

	installSignalHandler(cl)

	return int(subcommands.Execute(context.Background()))
}

func main() {
	os.Exit(doMain())
}

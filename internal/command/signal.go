// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package command contains process-level helpers shared by the featrun
// executables.
package command

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// InstallSignalHandler makes the process exit with status 1 on SIGINT or
// SIGTERM, after calling cleanup. On SIGTERM, usually sent by a parent that
// gave up waiting, goroutine stacks are dumped to out and child processes
// are killed.
func InstallSignalHandler(out io.Writer, cleanup func(sig os.Signal)) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM)
	go func() {
		sig := <-ch
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(out, "\n%s: got %v; exiting\n", name, sig)
		cleanup(sig)
		if sig == unix.SIGTERM {
			fmt.Fprintf(out, "%s: goroutines:\n", name)
			pprof.Lookup("goroutine").WriteTo(out, 2)
			if err := killChildren(); err != nil {
				fmt.Fprintf(out, "%s: failed to kill subprocesses: %v\n", name, err)
			}
		}
		os.Exit(1)
	}()
}

func killChildren() error {
	self, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	children, err := self.Children()
	if err != nil {
		// gopsutil reports no children as an error.
		if err == process.ErrorNoChildren {
			return nil
		}
		return err
	}
	for _, c := range children {
		if err := KillTree(int(c.Pid)); err != nil {
			return err
		}
	}
	return nil
}

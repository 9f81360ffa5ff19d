// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// KillTree sends SIGKILL to the process pid and all of its descendants.
// Descendants are killed first so that none of them is reparented and
// missed. A process that has already exited is not an error.
func KillTree(pid int) error {
	if p, err := process.NewProcess(int32(pid)); err == nil {
		if children, err := p.Children(); err == nil {
			for _, c := range children {
				KillTree(int(c.Pid))
			}
		}
	}
	if err := unix.Kill(pid, unix.SIGKILL); err != nil && err != unix.ESRCH {
		return err
	}
	return nil
}

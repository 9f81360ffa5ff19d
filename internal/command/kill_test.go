// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"os/exec"
	"testing"
	"time"
)

func TestKillTree(t *testing.T) {
	// The shell forks a sleeping child so that there is a tree to kill.
	cmd := exec.Command("sh", "-c", "sleep 60 & wait")
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if err := KillTree(cmd.Process.Pid); err != nil {
		t.Fatalf("KillTree failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Process survived KillTree")
	}
}

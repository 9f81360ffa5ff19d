// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package fakeexec runs functions of the current test binary as
// subprocesses, so that tests can talk to a real worker process.
package fakeexec

import (
	"encoding/json"
	"fmt"
	"os"

	"go.chromium.org/featrun/internal/genericexec"
)

const (
	nameEnv   = "FEATRUN_AUX_MAIN"        // name of the auxiliary main to run
	paramsEnv = "FEATRUN_AUX_MAIN_PARAMS" // JSON-encoded parameter of the auxiliary main
)

var registered = make(map[string]bool)

// AuxMain is an auxiliary main function taking a parameter of type T.
type AuxMain[T any] struct {
	name string
}

// NewAuxMain registers f as the auxiliary main function called name. name
// must be unique within the executable.
//
// NewAuxMain must be called in a top-level variable initialization:
//
//	var workerMain = fakeexec.NewAuxMain("worker", func(p workerParams) {
//		// Another main function here...
//	})
//
// If the current process was started for name, NewAuxMain calls f and exits
// with status 0 if f returns. Otherwise it returns an AuxMain that can start
// such a process.
func NewAuxMain[T any](name string, f func(T)) *AuxMain[T] {
	if registered[name] {
		panic(fmt.Sprintf("fakeexec: auxiliary main %q registered twice", name))
	}
	registered[name] = true

	if os.Getenv(nameEnv) == name {
		var p T
		if err := json.Unmarshal([]byte(os.Getenv(paramsEnv)), &p); err != nil {
			panic(fmt.Sprintf("fakeexec: %s: bad parameter: %v", name, err))
		}
		f(p)
		os.Exit(0)
	}
	return &AuxMain[T]{name: name}
}

// Params returns what is needed to run the auxiliary main with p.
func (a *AuxMain[T]) Params(p T) (*AuxMainParams, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &AuxMainParams{
		exe: exe,
		env: []string{nameEnv + "=" + a.name, paramsEnv + "=" + string(b)},
	}, nil
}

// AuxMainParams describes how to run an auxiliary main function.
type AuxMainParams struct {
	exe string
	env []string
}

// Executable returns the path of the current executable.
func (a *AuxMainParams) Executable() string { return a.exe }

// Envs returns the "key=value" environment variables selecting the
// auxiliary main.
func (a *AuxMainParams) Envs() []string { return append([]string(nil), a.env...) }

// Cmd returns a command running the auxiliary main.
func (a *AuxMainParams) Cmd() *genericexec.ExecCmd {
	return genericexec.CommandExec(a.exe).WithEnv(a.env...)
}

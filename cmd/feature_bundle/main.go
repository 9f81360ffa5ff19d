// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package main implements the default worker bundle of featrun, providing
// the standard web, mobile and shell step library.
package main

import (
	"os"

	"go.chromium.org/featrun/internal/bundle"
	"go.chromium.org/featrun/internal/steps"
)

func main() {
	os.Exit(bundle.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, bundle.Delegate{
		Steps: steps.Register,
	}))
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"fmt"
	"io"
	"strings"

	"go.chromium.org/featrun/errors"
)

// StatusError is an error carrying the exit status of a process.
type StatusError struct {
	msg    string
	status int
}

// Exitf returns an error making the process exit with status.
func Exitf(status int, format string, args ...interface{}) *StatusError {
	return &StatusError{msg: fmt.Sprintf(format, args...), status: status}
}

func (e *StatusError) Error() string { return fmt.Sprintf("%s (status %d)", e.msg, e.status) }

// Status returns the exit status.
func (e *StatusError) Status() int { return e.status }

// ExitStatus writes err to w as a single line and returns the exit status
// it carries, or 1 if it carries none.
func ExitStatus(w io.Writer, err error) int {
	msg, status := err.Error(), 1
	var se *StatusError
	if errors.As(err, &se) {
		msg, status = se.msg, se.status
	}
	fmt.Fprintln(w, strings.TrimSuffix(msg, "\n"))
	return status
}

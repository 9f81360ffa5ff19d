// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package errors constructs errors that remember where they were created.
//
// Use this package instead of the standard errors package or fmt.Errorf:
//
//	errors.New("worker not started")
//	errors.Wrapf(err, "failed to invoke %s", method)
//
// Formatting an error with "%+v" prints each error of its chain followed by
// the stack recorded for it. The failure classifier uses the innermost
// recorded stack to find the step definition an error came from.
package errors

import (
	"errors"
	"fmt"
	"io"

	"go.chromium.org/featrun/errors/stack"
)

// E is the error type created by this package.
type E struct {
	msg   string
	stk   stack.Stack
	cause error
}

// newE must be called directly by an exported constructor.
func newE(cause error, msg string) *E {
	return &E{msg: msg, stk: stack.New(2), cause: cause}
}

// New returns an error with msg.
func New(msg string) error { return newE(nil, msg) }

// Errorf returns an error with a formatted message.
func Errorf(format string, args ...interface{}) error {
	return newE(nil, fmt.Sprintf(format, args...))
}

// Wrap returns an error adding msg to cause. A nil cause is allowed.
func Wrap(cause error, msg string) error { return newE(cause, msg) }

// Wrapf is like Wrap with a formatted message.
func Wrapf(cause error, format string, args ...interface{}) error {
	return newE(cause, fmt.Sprintf(format, args...))
}

func (e *E) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *E) Unwrap() error { return e.cause }

// Stack returns the stack recorded when e was created.
func (e *E) Stack() stack.Stack { return e.stk }

// Format implements fmt.Formatter. "%+v" prints the chain with stacks.
func (e *E) Format(s fmt.State, verb rune) {
	if verb != 'v' || !s.Flag('+') {
		io.WriteString(s, e.Error())
		return
	}
	var err error = e
	for i := 0; err != nil; i++ {
		if i > 0 {
			io.WriteString(s, "\n")
		}
		ee, ok := err.(*E)
		if !ok {
			fmt.Fprintf(s, "%s\n\tat ???", err)
			return
		}
		fmt.Fprintf(s, "%s\n%v", ee.msg, ee.stk)
		err = ee.cause
	}
}

// Is calls the standard errors.Is.
func Is(err, target error) bool { return errors.Is(err, target) }

// As calls the standard errors.As.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Unwrap calls the standard errors.Unwrap.
func Unwrap(err error) error { return errors.Unwrap(err) }

// StackOf returns the innermost stack recorded in err's chain, or nil if no
// error in the chain was created by this package.
func StackOf(err error) stack.Stack {
	var found stack.Stack
	for ; err != nil; err = errors.Unwrap(err) {
		if e, ok := err.(*E); ok {
			found = e.stk
		}
	}
	return found
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package engine

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.chromium.org/featrun/errors"
)

// ErrPending can be returned by a StepFunc to mark its step as pending.
var ErrPending = errors.New("step is pending")

// Match is passed to a StepFunc. It holds the values captured from the step
// text along with the step's doc string and data table.
type Match struct {
	Text      string
	Args      []string
	DocString string
	Table     [][]string
}

// StepFunc implements a step definition.
type StepFunc func(ctx context.Context, m *Match) error

type definition struct {
	re *regexp.Regexp
	f  StepFunc
}

// Registry holds step definitions.
type Registry struct {
	defs    []*definition
	exprs   map[string]struct{} // registered expressions
	regErrs []error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{exprs: make(map[string]struct{})}
}

// Define registers f for steps whose whole text matches the regular
// expression expr. Capture groups become Match.Args.
func (r *Registry) Define(expr string, f StepFunc) error {
	if f == nil {
		return errors.Errorf("step %q has no function", expr)
	}
	if _, ok := r.exprs[expr]; ok {
		return errors.Errorf("step %q already defined", expr)
	}
	anchored := expr
	if !strings.HasPrefix(anchored, "^") {
		anchored = "^" + anchored
	}
	if !strings.HasSuffix(anchored, "$") {
		anchored += "$"
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		return errors.Wrapf(err, "bad step expression %q", expr)
	}
	r.defs = append(r.defs, &definition{re: re, f: f})
	r.exprs[expr] = struct{}{}
	return nil
}

// MustDefine is similar to Define, but it records the error instead of
// returning it. Recorded errors are reported by RegistrationErrors.
func (r *Registry) MustDefine(expr string, f StepFunc) {
	if err := r.Define(expr, f); err != nil {
		r.regErrs = append(r.regErrs, err)
	}
}

// RegistrationErrors returns errors recorded by MustDefine.
func (r *Registry) RegistrationErrors() []error {
	return append([]error(nil), r.regErrs...)
}

// Len returns the number of step definitions.
func (r *Registry) Len() int {
	return len(r.defs)
}

// ambiguousError is returned by find when more than one definition matches.
type ambiguousError struct {
	text  string
	exprs []string
}

func (e *ambiguousError) Error() string {
	return fmt.Sprintf("ambiguous step %q matches %s", e.text, strings.Join(e.exprs, ", "))
}

func (e *ambiguousError) Name() string { return "AmbiguousStepError" }

// find returns the definition matching text and the captured arguments.
// It returns nil if there is none.
func (r *Registry) find(text string) (*definition, []string, error) {
	var found *definition
	var args []string
	var exprs []string
	for _, d := range r.defs {
		m := d.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		exprs = append(exprs, d.re.String())
		if found == nil {
			found, args = d, m[1:]
		}
	}
	if len(exprs) > 1 {
		return nil, nil, &ambiguousError{text: text, exprs: exprs}
	}
	return found, args, nil
}

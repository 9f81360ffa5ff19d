// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package command

import (
	"strconv"
	"strings"
	"time"

	"go.chromium.org/featrun/errors"
)

// DurationFlag is a flag.Value setting a time.Duration. A bare integer is
// taken in a fixed unit, so "-timeout=30" and "-timeout=30s" mean the same
// for a flag in seconds.
type DurationFlag struct {
	unit time.Duration
	dst  *time.Duration
}

// NewDurationFlag sets *dst to def and returns a flag writing to dst, using
// unit for bare integers.
func NewDurationFlag(unit time.Duration, dst *time.Duration, def time.Duration) *DurationFlag {
	*dst = def
	return &DurationFlag{unit: unit, dst: dst}
}

func (f *DurationFlag) Set(v string) error {
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		*f.dst = time.Duration(n) * f.unit
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return errors.Errorf("bad duration %q", v)
	}
	*f.dst = d
	return nil
}

func (f *DurationFlag) String() string {
	if f.dst == nil || f.unit == 0 {
		return ""
	}
	if *f.dst%f.unit != 0 {
		return f.dst.String()
	}
	return strconv.FormatInt(int64(*f.dst/f.unit), 10)
}

// ListFlag is a flag.Value splitting its value by a separator. Blank items
// are dropped.
type ListFlag struct {
	sep    string
	assign func([]string)
	def    []string
}

// NewListFlag returns a flag passing the items to assign. def, if non-nil,
// is assigned immediately.
func NewListFlag(sep string, assign func([]string), def []string) *ListFlag {
	if def != nil {
		assign(def)
	}
	return &ListFlag{sep: sep, assign: assign, def: def}
}

func (f *ListFlag) Set(v string) error {
	var items []string
	for _, s := range strings.Split(v, f.sep) {
		if s = strings.TrimSpace(s); s != "" {
			items = append(items, s)
		}
	}
	f.assign(items)
	return nil
}

func (f *ListFlag) String() string { return strings.Join(f.def, f.sep) }

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package driver contains helpers shared by the automation drivers.
package driver

import (
	"go.chromium.org/featrun/internal/failure"
)

// Error is an error reported by a driver. Kind is a WebDriver error name
// such as "NoSuchElement", which the failure classifier maps to a code.
type Error struct {
	Kind  string
	Msg   string
	Stack *failure.DriverStack
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind
	}
	return e.Msg
}

// Name returns the WebDriver error name.
func (e *Error) Name() string { return e.Kind }

// DriverStack returns the status detail attached by the driver, if any.
func (e *Error) DriverStack() *failure.DriverStack { return e.Stack }

// Caps holds session capabilities as decoded from JSON.
type Caps map[string]interface{}

// vendorPrefixes are tried in order when looking up a capability.
var vendorPrefixes = []string{"", "appium:"}

func (c Caps) lookup(key string) (interface{}, bool) {
	for _, p := range vendorPrefixes {
		if v, ok := c[p+key]; ok {
			return v, true
		}
	}
	return nil, false
}

// String returns the first non-empty string value among keys.
func (c Caps) String(keys ...string) string {
	for _, k := range keys {
		if v, ok := c.lookup(k); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Int returns the value of key as an integer, or def if it is absent or not
// a number.
func (c Caps) Int(key string, def int) int {
	v, ok := c.lookup(key)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// Bool returns the value of key as a boolean, or def if it is absent.
func (c Caps) Bool(key string, def bool) bool {
	v, _ := c.lookup(key)
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

// Strings returns the value of key as a list of strings. Non-string
// elements are dropped.
func (c Caps) Strings(key string) []string {
	vs, _ := c[key].([]interface{})
	var out []string
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Sub returns the nested capabilities object at key, or nil.
func (c Caps) Sub(key string) Caps {
	m, _ := c[key].(map[string]interface{})
	return Caps(m)
}

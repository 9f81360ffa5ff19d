// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package failure

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"go.chromium.org/featrun/errors"
)

// Frame is a single stack frame of a raw error.
type Frame struct {
	Function string `json:"function,omitempty"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Col      int    `json:"col"`
}

// Stack is a stack trace of a raw error. On the wire it is either a list of
// frames or a plain text trace.
type Stack struct {
	Frames []Frame
	Text   string
}

// MarshalJSON implements json.Marshaler.
func (s Stack) MarshalJSON() ([]byte, error) {
	if len(s.Frames) > 0 {
		return json.Marshal(s.Frames)
	}
	return json.Marshal(s.Text)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stack) UnmarshalJSON(b []byte) error {
	var text string
	if err := json.Unmarshal(b, &text); err == nil {
		*s = Stack{Text: text}
		return nil
	}
	var frames []Frame
	if err := json.Unmarshal(b, &frames); err != nil {
		return errors.Wrap(err, "stack is neither text nor frames")
	}
	*s = Stack{Frames: frames}
	return nil
}

// DriverStack is the status detail a remote driver attaches to runtime
// errors.
type DriverStack struct {
	Type             string `json:"type,omitempty"`
	OrgStatusMessage string `json:"orgStatusMessage,omitempty"`
}

// Raw is the wire shape of an error before classification. It is what step
// code failures look like after crossing the worker process boundary.
//
// A Raw whose Type is a taxonomy code and whose IsFatal is set is in
// canonical shape and classifies to the equivalent Record.
type Raw struct {
	Code        string       `json:"code,omitempty"`
	Type        string       `json:"type,omitempty"`
	Name        string       `json:"name,omitempty"`
	Message     *string      `json:"message,omitempty"`
	Data        interface{}  `json:"data,omitempty"`
	IsFatal     *bool        `json:"isFatal,omitempty"`
	Location    *string      `json:"location,omitempty"`
	Stack       *Stack       `json:"stack,omitempty"`
	DriverStack *DriverStack `json:"seleniumStack,omitempty"`
}

// Error implements the error interface.
func (r *Raw) Error() string {
	msg := ""
	if r.Message != nil {
		msg = *r.Message
	}
	if d := r.discriminator(); d != "" {
		return fmt.Sprintf("%s: %s", d, msg)
	}
	return msg
}

func (r *Raw) discriminator() string {
	switch {
	case r.Code != "":
		return r.Code
	case r.Type != "":
		return r.Type
	default:
		return r.Name
	}
}

func (r *Raw) canonical() bool {
	return r.Code == "" && r.IsFatal != nil && Known(Code(r.Type))
}

func (r *Raw) msg() string {
	if r.Message == nil {
		return ""
	}
	return *r.Message
}

// Interfaces an error may implement to describe itself to the classifier.
type (
	coder         interface{ Code() string }
	namer         interface{ Name() string }
	locator       interface{ Location() string }
	driverStacker interface{ DriverStack() *DriverStack }
)

// RawFromRecord returns the canonical wire shape of r.
func RawFromRecord(r *Record) *Raw {
	fatal := r.IsFatal
	return &Raw{
		Type:     string(r.Type),
		Message:  r.Message,
		Data:     r.Data,
		IsFatal:  &fatal,
		Location: r.Location,
	}
}

// FromError converts a Go error into its wire shape so that it can be sent
// to another process and classified there. It returns nil for a nil error.
func FromError(err error) *Raw {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return RawFromRecord(fe.Record())
	}
	var raw *Raw
	if errors.As(err, &raw) {
		return raw
	}

	r := &Raw{Message: strPtr(err.Error())}
	var c coder
	var n namer
	switch {
	case errors.As(err, &c):
		r.Type = c.Code()
	case errors.As(err, &n):
		r.Name = n.Name()
	default:
		r.Name = runtimeName(err)
	}

	var l locator
	if errors.As(err, &l) {
		if loc := l.Location(); loc != "" {
			r.Location = strPtr(loc)
		}
	}
	var ds driverStacker
	if errors.As(err, &ds) {
		r.DriverStack = ds.DriverStack()
	}
	if frames := errors.StackOf(err).Frames(); len(frames) > 0 {
		st := &Stack{}
		for _, f := range frames {
			st.Frames = append(st.Frames, Frame{Function: f.Function, File: f.File, Line: f.Line})
		}
		r.Stack = st
	}
	return r
}

// runtimeName returns the name used to look up err in the runtime table.
func runtimeName(err error) string {
	var te *runtime.TypeAssertionError
	if errors.As(err, &te) {
		return "TypeError"
	}
	var re runtime.Error
	if errors.As(err, &re) {
		if strings.Contains(re.Error(), "nil pointer dereference") {
			return "ReferenceError"
		}
		return "TypeError"
	}
	return fmt.Sprintf("%T", err)
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package failure normalizes errors raised by drivers, assertions and step
// code into canonical failure records.
//
// Classify is the entry point. It is total: any value, including nil and
// malformed wire payloads, yields a Record.
package failure

import (
	"fmt"

	"go.chromium.org/featrun/errors/stack"
)

// Code is a stable failure category independent of the vendor error name.
type Code string

// Codes produced by the classifier.
const (
	ScriptError                    Code = "SCRIPT_ERROR"
	UnknownError                   Code = "UNKNOWN_ERROR"
	AssertError                    Code = "ASSERT_ERROR"
	VerifyError                    Code = "VERIFY_ERROR"
	ElementNotFound                Code = "ELEMENT_NOT_FOUND"
	FrameNotFound                  Code = "FRAME_NOT_FOUND"
	UnknownCommandError            Code = "UNKNOWN_COMMAND_ERROR"
	StaleElementReference          Code = "STALE_ELEMENT_REFERENCE"
	ElementNotVisible              Code = "ELEMENT_NOT_VISIBLE"
	LocatorMatchesMultipleElements Code = "LOCATOR_MATCHES_MULTIPLE_ELEMENTS"
	ElementStillExists             Code = "ELEMENT_STILL_EXISTS"
	BrowserJSExecuteError          Code = "BROWSER_JS_EXECUTE_ERROR"
	Timeout                        Code = "TIMEOUT"
	WindowNotFound                 Code = "WINDOW_NOT_FOUND"
	UnexpectedAlertOpen            Code = "UNEXPECTED_ALERT_OPEN"
	NoAlertOpenError               Code = "NO_ALERT_OPEN_ERROR"
	AppiumUnreachableError         Code = "APPIUM_UNREACHABLE_ERROR"
	SeleniumUnreachableError       Code = "SELENIUM_UNREACHABLE_ERROR"
	ChromeBinaryNotFound           Code = "CHROME_BINARY_NOT_FOUND"
	ModuleNotInitializedError      Code = "MODULE_NOT_INITIALIZED_ERROR"
	DeviceNotFound                 Code = "DEVICE_NOT_FOUND"
	ParametersError                Code = "PARAMETERS_ERROR"
	InvalidCapabilities            Code = "INVALID_CAPABILITIES"
	BrowserConfigurationError      Code = "BROWSER_CONFIGURATION_ERROR"
	AppiumRuntimeError             Code = "APPIUM_RUNTIME_ERROR"
	SeleniumRuntimeError           Code = "SELENIUM_RUNTIME_ERROR"
	RuntimeError                   Code = "RUNTIME_ERROR"
)

// knownCodes is the closed set of codes a Record may carry.
var knownCodes = map[Code]struct{}{}

func init() {
	for _, c := range []Code{
		ScriptError, UnknownError, AssertError, VerifyError, ElementNotFound,
		FrameNotFound, UnknownCommandError, StaleElementReference,
		ElementNotVisible, LocatorMatchesMultipleElements, ElementStillExists,
		BrowserJSExecuteError, Timeout, WindowNotFound, UnexpectedAlertOpen,
		NoAlertOpenError, AppiumUnreachableError, SeleniumUnreachableError,
		ChromeBinaryNotFound, ModuleNotInitializedError, DeviceNotFound,
		ParametersError, InvalidCapabilities, BrowserConfigurationError,
		AppiumRuntimeError, SeleniumRuntimeError, RuntimeError,
	} {
		knownCodes[c] = struct{}{}
	}
	for _, c := range driverCodes {
		knownCodes[c] = struct{}{}
	}
}

// Known reports whether c belongs to the taxonomy.
func Known(c Code) bool {
	_, ok := knownCodes[c]
	return ok
}

// Record is the canonical description of a failure.
//
// Records are immutable once returned by this package; callers must not
// modify their fields.
type Record struct {
	Type     Code        `json:"type"`
	Message  *string     `json:"message"`
	Data     interface{} `json:"data"`
	IsFatal  bool        `json:"isFatal"`
	Location *string     `json:"location"`
}

// Msg returns the message of r, or an empty string if it has none.
func (r *Record) Msg() string {
	if r == nil || r.Message == nil {
		return ""
	}
	return *r.Message
}

// Loc returns the location of r, or an empty string if it is unknown.
func (r *Record) Loc() string {
	if r == nil || r.Location == nil {
		return ""
	}
	return *r.Location
}

func (r *Record) String() string {
	if r.Message == nil {
		return string(r.Type)
	}
	return fmt.Sprintf("%s: %s", r.Type, *r.Message)
}

func newRecord(code Code, msg *string, data interface{}, fatal bool, loc *string) *Record {
	return &Record{Type: code, Message: msg, Data: data, IsFatal: fatal, Location: loc}
}

func strPtr(s string) *string {
	return &s
}

// Error is an error that has already been classified. Returning an Error
// from a step or a command bypasses classification.
type Error struct {
	rec *Record
}

// New creates a fatal Error. Its location is the caller of New.
func New(code Code, msg string) *Error {
	return newError(code, msg, true, stack.New(1))
}

// NewNonFatal is similar to New but the failure does not stop the case.
func NewNonFatal(code Code, msg string) *Error {
	return newError(code, msg, false, stack.New(1))
}

func newError(code Code, msg string, fatal bool, s stack.Stack) *Error {
	var loc *string
	if frames := s.Frames(); len(frames) > 0 {
		loc = strPtr(formatLocation(frames[0].File, frames[0].Line, 0))
	}
	return &Error{rec: newRecord(code, strPtr(msg), nil, fatal, loc)}
}

// AsError turns r into an error.
func AsError(r *Record) *Error {
	return &Error{rec: r}
}

// Record returns the classified record.
func (e *Error) Record() *Record {
	return e.rec
}

func (e *Error) Error() string {
	return e.rec.String()
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package failure

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// Context is the command context an error was raised in.
type Context struct {
	Module  string
	Command string
}

// driverCodes maps WebDriver protocol error names to codes.
var driverCodes = map[string]Code{
	"NoSuchElement":              ElementNotFound,
	"NoSuchFrame":                FrameNotFound,
	"UnknownCommand":             UnknownCommandError,
	"StaleElementReference":      StaleElementReference,
	"ElementNotVisible":          ElementNotVisible,
	"InvalidElementState":        "INVALID_ELEMENT_STATE",
	"UnknownError":               UnknownError,
	"ElementIsNotSelectable":     "ELEMENT_IS_NOT_SELECTABLE",
	"JavaScriptError":            BrowserJSExecuteError,
	"XPathLookupError":           ElementNotFound,
	"Timeout":                    Timeout,
	"NoSuchWindow":               WindowNotFound,
	"InvalidCookieDomain":        "INVALID_COOKIE_DOMAIN",
	"UnableToSetCookie":          "UNABLE_TO_SET_COOKIE",
	"UnexpectedAlertOpen":        UnexpectedAlertOpen,
	"NoAlertOpenError":           NoAlertOpenError,
	"ScriptTimeout":              UnknownError,
	"InvalidElementCoordinates":  "INVALID_ELEMENT_COORDINATES",
	"IMENotAvailable":            "IME_NOT_AVAILABLE",
	"IMEEngineActivationFailed":  "IME_ENGINE_ACTIVATION_FAILED",
	"InvalidSelector":            "INVALID_SELECTOR",
	"SessionNotCreatedException": "SESSION_NOT_CREATED_EXCEPTION",
	"ElementNotScrollable":       "ELEMENT_NOT_SCROLLABLE",
	"SelectorTimeoutError":       "SELECTOR_TIMEOUT_ERROR",
	"NoSessionIdError":           "NO_SESSION_ID_ERROR",
	"GridApiError":               "GRID_API_ERROR",
	"WaitForTimeoutError":        Timeout,
	"WaitUntilTimeoutError":      Timeout,
	"NoSuchDriver":               "NO_SUCH_DRIVER",
}

// assertionCodes maps assertion library error names to codes.
var assertionCodes = map[string]Code{
	"AssertionError": AssertError,
}

// runtimeCodes maps script runtime error names to codes.
var runtimeCodes = map[string]Code{
	"ReferenceError": ScriptError,
	"TypeError":      ScriptError,
}

const (
	runtimeErrorName  = "RuntimeError"
	waitUntilName     = "WaitUntilTimeoutError"
	originalErrorMark = "Original error: "
	promisePrefix     = "Promise was rejected with the following reason: "
	verifyModule      = "verify"
	initCommand       = "init"
)

var dumper = spew.ConfigState{
	Indent:                  " ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump returns a diagnostic text representation of v.
func Dump(v interface{}) string {
	return dumper.Sdump(v)
}

// Classify converts raw into a canonical Record.
//
// raw may be a *Record, an *Error, a *Raw, a decoded JSON object, any error,
// a string or nil. Records and Errors are returned unchanged. Classify never
// panics; anything it cannot recognize becomes UNKNOWN_ERROR with a dump of
// raw as its data.
func Classify(raw interface{}, cc Context) (rec *Record) {
	defer func() {
		if p := recover(); p != nil {
			rec = unknown(raw, nil, nil)
		}
	}()

	switch v := raw.(type) {
	case *Record:
		if v != nil {
			return v
		}
	case *Error:
		if v != nil {
			return v.Record()
		}
	}

	r := normalize(raw)
	if r == nil {
		return unknown(raw, nil, nil)
	}
	if r.canonical() {
		return newRecord(Code(r.Type), r.Message, r.Data, *r.IsFatal, r.Location)
	}
	return classifyRaw(r, raw, cc)
}

// normalize converts the accepted input shapes into a Raw. It returns nil if
// raw carries nothing to classify.
func normalize(raw interface{}) *Raw {
	switch v := raw.(type) {
	case nil:
		return nil
	case *Record:
		if v == nil {
			return nil
		}
		return RawFromRecord(v)
	case *Raw:
		return v
	case Raw:
		return &v
	case error:
		return FromError(v)
	case string:
		return &Raw{Message: strPtr(v)}
	case map[string]interface{}:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var r Raw
		if err := json.Unmarshal(b, &r); err != nil {
			return nil
		}
		return &r
	case json.RawMessage:
		var r Raw
		if err := json.Unmarshal(v, &r); err != nil {
			return nil
		}
		return &r
	default:
		return nil
	}
}

func classifyRaw(raw *Raw, orig interface{}, cc Context) *Record {
	name := raw.discriminator()
	msg := raw.msg()
	loc := ResolveLocation(raw)
	fatal := true

	if c, ok := driverCodes[name]; ok {
		if name == waitUntilName {
			msg = strings.TrimPrefix(msg, promisePrefix)
		}
		return newRecord(c, strPtr(msg), nil, fatal, loc)
	}

	if name == runtimeErrorName {
		if raw.DriverStack != nil {
			switch {
			case strings.Contains(msg, "unknown error: NoSuchElement"):
				return newRecord(ElementNotFound, strPtr(msg), nil, fatal, loc)
			case strings.HasPrefix(msg, "Element is not displayed"):
				return newRecord(ElementNotVisible, strPtr(msg), nil, fatal, loc)
			}
			if c, ok := driverCodes[raw.DriverStack.Type]; ok {
				return newRecord(c, strPtr(msg), nil, fatal, loc)
			}
			// An unmatched driver stack keeps the full message.
		} else if i := strings.Index(msg, originalErrorMark); i >= 0 {
			return newRecord(RuntimeError, strPtr(msg[i+len(originalErrorMark):]), nil, fatal, loc)
		}
	}

	if c, ok := assertionCodes[name]; ok {
		if cc.Command != initCommand && (cc.Module == verifyModule || strings.HasPrefix(cc.Command, verifyModule)) {
			return newRecord(VerifyError, strPtr(msg), nil, false, loc)
		}
		return newRecord(c, strPtr(msg), nil, fatal, loc)
	}

	if c, ok := runtimeCodes[name]; ok {
		var data interface{}
		if raw.Stack != nil {
			if raw.Stack.Text != "" {
				data = raw.Stack.Text
			} else {
				data = formatFrames(raw.Stack.Frames)
			}
		}
		return newRecord(c, strPtr(fmt.Sprintf("%s: %s", name, msg)), data, fatal, loc)
	}

	return unknown(orig, raw, loc)
}

// unknown builds the fallback record. raw may be nil if orig could not be
// normalized.
func unknown(orig interface{}, raw *Raw, loc *string) *Record {
	var msg *string
	switch {
	case raw != nil:
		msg = strPtr(raw.Error())
	case orig != nil:
		msg = strPtr(fmt.Sprint(orig))
	}
	return newRecord(UnknownError, msg, Dump(orig), true, loc)
}

func formatFrames(frames []Frame) string {
	var lines []string
	for _, f := range frames {
		lines = append(lines, fmt.Sprintf("    at %s (%s)", f.Function, formatLocation(f.File, f.Line, f.Col)))
	}
	return strings.Join(lines, "\n")
}

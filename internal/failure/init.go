// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package failure

import (
	"regexp"
	"strings"
)

var ieZoomRe = regexp.MustCompile(`Unexpected error launching Internet Explorer\. Browser zoom level was set to \d+%\. It should be set to \d+%`)

// server names the remote endpoint in transport failure messages.
type server struct {
	name        string
	unreachable Code
	runtime     Code
}

var (
	seleniumServer = server{"Selenium", SeleniumUnreachableError, SeleniumRuntimeError}
	appiumServer   = server{"Appium", AppiumUnreachableError, AppiumRuntimeError}
)

// ResolveSeleniumInit classifies an error raised while starting a web driver
// session. The result is always fatal.
func ResolveSeleniumInit(raw interface{}) *Record {
	r := normalize(raw)
	if r == nil {
		return unknown(raw, nil, nil)
	}
	if r.canonical() {
		return Classify(r, Context{Command: initCommand})
	}
	loc := ResolveLocation(r)
	if m := ieZoomRe.FindString(r.msg()); m != "" {
		return newRecord(BrowserConfigurationError, strPtr(m), nil, true, loc)
	}
	if rec := resolveTransport(r, seleniumServer, loc); rec != nil {
		return rec
	}
	if r.discriminator() == runtimeErrorName {
		return newRecord(seleniumServer.runtime, strPtr(r.msg()), nil, true, loc)
	}
	return unknown(raw, r, loc)
}

// ResolveAppiumInit classifies an error raised while starting a mobile
// driver session. The result is always fatal.
func ResolveAppiumInit(raw interface{}) *Record {
	r := normalize(raw)
	if r == nil {
		return unknown(raw, nil, nil)
	}
	if r.canonical() {
		return Classify(r, Context{Command: initCommand})
	}
	loc := ResolveLocation(r)
	if rec := resolveTransport(r, appiumServer, loc); rec != nil {
		return rec
	}
	if r.DriverStack != nil && strings.Contains(r.DriverStack.OrgStatusMessage, "Could not find a connected Android device") ||
		strings.Contains(r.msg(), "no devices/emulators found") {
		return newRecord(DeviceNotFound, strPtr("Could not find a connected Android device"), nil, true, loc)
	}
	if r.discriminator() == runtimeErrorName {
		msg := r.msg()
		if i := strings.Index(msg, originalErrorMark); i >= 0 {
			msg = msg[i+len(originalErrorMark):]
		}
		return newRecord(appiumServer.runtime, strPtr(msg), nil, true, loc)
	}
	return unknown(raw, r, loc)
}

func resolveTransport(r *Raw, s server, loc *string) *Record {
	msg := r.msg()
	switch {
	case strings.Contains(msg, "cannot find Chrome binary") ||
		strings.Contains(msg, "executable file not found"):
		return newRecord(ChromeBinaryNotFound, strPtr("Cannot find Chrome binary"), nil, true, loc)
	case strings.Contains(msg, "ECONNREFUSED") || strings.Contains(msg, "connection refused"):
		return newRecord(s.unreachable, strPtr("Couldn't connect to "+s.name+" server"), nil, true, loc)
	case strings.Contains(msg, "ENOTFOUND") || strings.Contains(msg, "no such host"):
		return newRecord(s.unreachable, strPtr("Couldn't resolve "+s.name+" server address"), nil, true, loc)
	}
	return nil
}

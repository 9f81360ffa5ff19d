// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package driver_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/failure"
)

const capsJSON = `{
	"platformName": "Android",
	"appium:deviceName": "Pixel",
	"appium:newCommandTimeout": 300,
	"appium:noReset": true,
	"browserName": "",
	"goog:chromeOptions": {"args": ["--headless", 1]}
}`

func TestCaps(t *testing.T) {
	var caps driver.Caps
	if err := json.Unmarshal([]byte(capsJSON), &caps); err != nil {
		t.Fatal(err)
	}

	if got := caps.String("platformName"); got != "Android" {
		t.Errorf("String(platformName) = %q; want %q", got, "Android")
	}
	if got := caps.String("udid", "deviceName"); got != "Pixel" {
		t.Errorf("String(udid, deviceName) = %q; want %q", got, "Pixel")
	}
	if got := caps.String("browserName"); got != "" {
		t.Errorf("String(browserName) = %q; want empty", got)
	}
	if got := caps.Int("newCommandTimeout", 60); got != 300 {
		t.Errorf("Int(newCommandTimeout) = %d; want 300", got)
	}
	if got := caps.Int("platformName", 60); got != 60 {
		t.Errorf("Int(platformName) = %d; want default 60", got)
	}
	if got := caps.Bool("noReset", false); !got {
		t.Error("Bool(noReset) = false; want true")
	}
	if got := caps.Bool("fullReset", true); !got {
		t.Error("Bool(fullReset) = false; want default true")
	}
	if diff := cmp.Diff(caps.Sub("goog:chromeOptions").Strings("args"), []string{"--headless"}); diff != "" {
		t.Errorf("Strings(args) mismatch (-got +want):\n%s", diff)
	}
	if sub := caps.Sub("missing"); sub.String("x") != "" {
		t.Error("Sub of a missing key is not empty")
	}
}

func TestError(t *testing.T) {
	err := &driver.Error{Kind: "NoSuchElement", Msg: "no such element: #login"}
	rec := failure.Classify(err, failure.Context{Module: "web", Command: "click"})
	if rec.Type != failure.ElementNotFound || rec.Msg() != "no such element: #login" {
		t.Errorf("Classify = %v %q; want %v", rec.Type, rec.Msg(), failure.ElementNotFound)
	}
	if got := (&driver.Error{Kind: "Timeout"}).Error(); got != "Timeout" {
		t.Errorf("Error() = %q; want %q", got, "Timeout")
	}
}

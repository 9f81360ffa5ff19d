// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package mob

import (
	"context"
	"strings"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/automation"
	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
)

type fakeDevice struct {
	serial string
	cmds   []string
	out    map[string]string
	err    error
}

func (d *fakeDevice) Serial() string { return d.serial }

func (d *fakeDevice) RunShellCommand(cmd string, args ...string) (string, error) {
	line := strings.Join(append([]string{cmd}, args...), " ")
	d.cmds = append(d.cmds, line)
	if d.err != nil {
		return "", d.err
	}
	return d.out[line], nil
}

func TestOptionsFromCaps(t *testing.T) {
	got, ok := OptionsFromCaps(driver.Caps{
		"platformName":   "Android",
		"appium:udid":    "emulator-5554",
		"appium:adbPort": float64(5038),
	})
	if !ok {
		t.Fatal("OptionsFromCaps rejected android caps")
	}
	if diff := cmp.Diff(got, Options{Serial: "emulator-5554", Port: 5038}); diff != "" {
		t.Errorf("OptionsFromCaps mismatch (-got +want):\n%s", diff)
	}
	if _, ok := OptionsFromCaps(driver.Caps{"browserName": "chrome"}); ok {
		t.Error("OptionsFromCaps unexpectedly accepted web caps")
	}
}

func TestPick(t *testing.T) {
	a := &fakeDevice{serial: "a"}
	b := &fakeDevice{serial: "b"}
	devs := []device{a, b}

	if d, err := pick(devs, ""); err != nil || d != a {
		t.Errorf("pick(\"\") = (%v, %v); want first device", d, err)
	}
	if d, err := pick(devs, "b"); err != nil || d != b {
		t.Errorf("pick(\"b\") = (%v, %v); want b", d, err)
	}

	for _, serial := range []string{"", "c"} {
		var list []device
		if serial != "" {
			list = devs
		}
		_, err := pick(list, serial)
		if err == nil {
			t.Fatalf("pick(%q) unexpectedly succeeded", serial)
		}
		rec := failure.ResolveAppiumInit(err)
		if rec.Type != failure.DeviceNotFound || !rec.IsFatal {
			t.Errorf("pick(%q) error resolved to %v (fatal=%v); want fatal %v", serial, rec.Type, rec.IsFatal, failure.DeviceNotFound)
		}
	}
}

func TestCommands(t *testing.T) {
	var names []string
	disp := event.NewDispatcher()
	if err := disp.Subscribe(event.CommandBefore, func(ev *event.Event) {
		names = append(names, ev.Command.Name)
	}); err != nil {
		t.Fatal(err)
	}
	s := automation.NewSession(disp, fakeclock.NewFakeClock(time.Unix(0, 0)))
	dev := &fakeDevice{serial: "emulator-5554", out: make(map[string]string)}
	dev.out["getprop ro.build.version.sdk"] = "34\n"
	dev.out["monkey -p com.broken -c android.intent.category.LAUNCHER 1"] = "** No activities found to run, monkey aborted."
	d, err := newDriver(s, dev)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := d.Tap(ctx, 10, 20); err != nil {
		t.Error("Tap failed: ", err)
	}
	if err := d.TypeText(ctx, "hello world"); err != nil {
		t.Error("TypeText failed: ", err)
	}
	if err := d.PressKey(ctx, "KEYCODE_BACK"); err != nil {
		t.Error("PressKey failed: ", err)
	}
	if v, err := d.GetProp(ctx, "ro.build.version.sdk"); err != nil {
		t.Error("GetProp failed: ", err)
	} else if v != "34" {
		t.Errorf("GetProp = %q; want %q", v, "34")
	}
	if err := d.LaunchApp(ctx, "com.broken"); err == nil {
		t.Error("LaunchApp of a package without activities unexpectedly succeeded")
	}

	exp := []string{
		"input tap 10 20",
		"input text hello%sworld",
		"input keyevent KEYCODE_BACK",
		"getprop ro.build.version.sdk",
		"monkey -p com.broken -c android.intent.category.LAUNCHER 1",
	}
	if diff := cmp.Diff(dev.cmds, exp); diff != "" {
		t.Errorf("Shell commands mismatch (-got +want):\n%s", diff)
	}
	if diff := cmp.Diff(names, []string{"tap", "typeText", "pressKey", "getProp", "launchApp"}); diff != "" {
		t.Errorf("Command events mismatch (-got +want):\n%s", diff)
	}
}

func TestShellError(t *testing.T) {
	s := automation.NewSession(event.NewDispatcher(), fakeclock.NewFakeClock(time.Unix(0, 0)))
	d, err := newDriver(s, &fakeDevice{serial: "x", err: errors.New("device offline")})
	if err != nil {
		t.Fatal(err)
	}
	_, err = d.Shell(context.Background(), "ls")
	var fe *failure.Error
	if !errors.As(err, &fe) {
		t.Fatalf("Shell returned %v; want *failure.Error", err)
	}
	if rec := fe.Record(); rec.Type != failure.UnknownError || rec.Msg() != "device offline" {
		t.Errorf("Shell failure = %v %q; want %v %q", rec.Type, rec.Msg(), failure.UnknownError, "device offline")
	}
}

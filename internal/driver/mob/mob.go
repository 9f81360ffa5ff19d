// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package mob implements the mobile automation module on top of ADB.
package mob

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/electricbubble/gadb"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/automation"
	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/logging"
	"go.chromium.org/featrun/shutil"
)

// ModuleName is the name mobile commands are reported under.
const ModuleName = "mob"

const (
	defaultHost = "localhost"
	defaultPort = 5037
)

// Options configures the connection to the ADB server.
type Options struct {
	// Serial selects the device. The first device is used if it is empty.
	Serial string
	// Host and Port locate the ADB server.
	Host string
	Port int
}

// OptionsFromCaps derives Options from session capabilities. It returns
// false if caps do not ask for an Android device.
func OptionsFromCaps(caps driver.Caps) (Options, bool) {
	if !strings.EqualFold(caps.String("platformName"), "android") {
		return Options{}, false
	}
	return Options{
		Serial: caps.String("udid", "deviceName"),
		Host:   caps.String("adbHost"),
		Port:   caps.Int("adbPort", 0),
	}, true
}

// device is the part of gadb.Device used by the driver.
type device interface {
	Serial() string
	RunShellCommand(cmd string, args ...string) (string, error)
}

// Driver is the mobile module.
type Driver struct {
	s   *automation.Session
	dev device
}

// Open connects to a device and registers the mobile module to s. Startup
// failures are classified as init failures.
func Open(ctx context.Context, s *automation.Session, o Options) (*Driver, error) {
	dev, err := connect(o)
	if err != nil {
		return nil, failure.AsError(failure.ResolveAppiumInit(err))
	}
	logging.Infof(ctx, "Using Android device %s", dev.Serial())
	return newDriver(s, dev)
}

func newDriver(s *automation.Session, dev device) (*Driver, error) {
	d := &Driver{s: s, dev: dev}
	if err := s.Register(d); err != nil {
		return nil, err
	}
	return d, nil
}

func connect(o Options) (device, error) {
	host := o.Host
	if host == "" {
		host = defaultHost
	}
	port := o.Port
	if port == 0 {
		port = defaultPort
	}
	client, err := gadb.NewClientWith(host, port)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to ADB server at %s", net.JoinHostPort(host, strconv.Itoa(port)))
	}
	devs, err := client.DeviceList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list devices")
	}
	ds := make([]device, len(devs))
	for i := range devs {
		ds[i] = devs[i]
	}
	return pick(ds, o.Serial)
}

// pick returns the device with serial, or the first device if serial is
// empty.
func pick(devs []device, serial string) (device, error) {
	for _, d := range devs {
		if serial == "" || d.Serial() == serial {
			return d, nil
		}
	}
	msg := "no devices/emulators found"
	if serial != "" {
		msg = fmt.Sprintf("device %s not found: %s", serial, msg)
	}
	return nil, &driver.Error{
		Kind:  "RuntimeError",
		Msg:   msg,
		Stack: &failure.DriverStack{OrgStatusMessage: "Could not find a connected Android device"},
	}
}

// Name implements automation.Module.
func (*Driver) Name() string { return ModuleName }

// Close implements automation.Module. The ADB connection is per command, so
// there is nothing to release.
func (*Driver) Close(ctx context.Context) error { return nil }

// Serial returns the serial of the device in use.
func (d *Driver) Serial() string { return d.dev.Serial() }

func (d *Driver) shell(ctx context.Context, command, cmd string, args ...string) (string, error) {
	var out string
	err := d.s.Call(ctx, ModuleName, command, func(ctx context.Context) error {
		var err error
		out, err = d.run(ctx, cmd, args...)
		return err
	})
	return out, err
}

func (d *Driver) run(ctx context.Context, cmd string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logging.Debugf(ctx, "adb -s %s shell %s", d.dev.Serial(), shutil.EscapeSlice(append([]string{cmd}, args...)))
	out, err := d.dev.RunShellCommand(cmd, args...)
	if err != nil {
		return out, &driver.Error{Kind: "UnknownError", Msg: err.Error()}
	}
	return out, nil
}

// Shell runs a shell command on the device and returns its output.
func (d *Driver) Shell(ctx context.Context, cmd string, args ...string) (string, error) {
	return d.shell(ctx, "shell", cmd, args...)
}

// Tap taps the screen at (x, y).
func (d *Driver) Tap(ctx context.Context, x, y int) error {
	_, err := d.shell(ctx, "tap", "input", "tap", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

// TypeText types text into the focused view.
func (d *Driver) TypeText(ctx context.Context, text string) error {
	// input text takes spaces as %s.
	_, err := d.shell(ctx, "typeText", "input", "text", shutil.Escape(strings.ReplaceAll(text, " ", "%s")))
	return err
}

// PressKey sends a key event such as "KEYCODE_BACK".
func (d *Driver) PressKey(ctx context.Context, key string) error {
	_, err := d.shell(ctx, "pressKey", "input", "keyevent", key)
	return err
}

// LaunchApp starts the launcher activity of pkg.
func (d *Driver) LaunchApp(ctx context.Context, pkg string) error {
	return d.s.Call(ctx, ModuleName, "launchApp", func(ctx context.Context) error {
		out, err := d.run(ctx, "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1")
		if err != nil {
			return err
		}
		if strings.Contains(out, "No activities found") {
			return &driver.Error{Kind: "UnknownError", Msg: fmt.Sprintf("no launchable activity in %s", pkg)}
		}
		return nil
	})
}

// GetProp returns the value of a system property.
func (d *Driver) GetProp(ctx context.Context, name string) (string, error) {
	out, err := d.shell(ctx, "getProp", "getprop", name)
	return strings.TrimSpace(out), err
}

// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package steps contains the standard step definitions of feature_bundle.
//
// Steps reach the automation modules through the session attached to their
// context. A step using a module the run's capabilities did not set up fails
// with MODULE_NOT_INITIALIZED_ERROR.
package steps

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stretchr/testify/assert"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/automation"
	"go.chromium.org/featrun/internal/driver/mob"
	"go.chromium.org/featrun/internal/driver/web"
	"go.chromium.org/featrun/internal/engine"
	"go.chromium.org/featrun/internal/failure"
)

// Register defines the standard steps in r.
func Register(r *engine.Registry) {
	r.MustDefine(`I start the transaction "([^"]*)"`, startTransaction)
	r.MustDefine(`I log "([^"]*)"`, logInfo)
	r.MustDefine(`I log a warning "([^"]*)"`, logWarn)

	r.MustDefine(`I run "([^"]*)"`, runCommand)
	r.MustDefine(`running "([^"]*)" should print "([^"]*)"`, commandPrints)

	r.MustDefine(`I open "([^"]*)"`, webOpen)
	r.MustDefine(`I click "([^"]*)"`, webClick)
	r.MustDefine(`I type "([^"]*)" into "([^"]*)"`, webType)
	r.MustDefine(`"([^"]*)" should be visible`, webVisible)
	r.MustDefine(`"([^"]*)" should contain "([^"]*)"`, webContains)
	r.MustDefine(`the page title should be "([^"]*)"`, webAssertTitle)
	r.MustDefine(`I verify the page title is "([^"]*)"`, webVerifyTitle)
	r.MustDefine(`I execute the script`, webExecute)

	r.MustDefine(`I tap at (\d+), (\d+)`, mobTap)
	r.MustDefine(`I type "([^"]*)" on the device`, mobType)
	r.MustDefine(`I press the "([^"]*)" key`, mobPress)
	r.MustDefine(`I launch the app "([^"]*)"`, mobLaunch)
	r.MustDefine(`the device property "([^"]*)" should be "([^"]*)"`, mobProp)
}

func session(ctx context.Context) (*automation.Session, error) {
	s, ok := automation.SessionFromContext(ctx)
	if !ok {
		return nil, errors.New("no automation session")
	}
	return s, nil
}

func notInitialized(name string) error {
	return failure.New(failure.ModuleNotInitializedError, fmt.Sprintf("Module %q is not initialized", name))
}

func webDriver(ctx context.Context) (*web.Driver, *automation.Session, error) {
	s, err := session(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Module(web.ModuleName)
	if err != nil {
		return nil, nil, err
	}
	d, ok := m.(*web.Driver)
	if !ok {
		return nil, nil, notInitialized(web.ModuleName)
	}
	return d, s, nil
}

func mobDriver(ctx context.Context) (*mob.Driver, *automation.Session, error) {
	s, err := session(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Module(mob.ModuleName)
	if err != nil {
		return nil, nil, err
	}
	d, ok := m.(*mob.Driver)
	if !ok {
		return nil, nil, notInitialized(mob.ModuleName)
	}
	return d, s, nil
}

func shell(ctx context.Context) (*automation.Shell, *automation.Session, error) {
	s, err := session(ctx)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.Module(automation.ShellModule)
	if err != nil {
		return nil, nil, err
	}
	sh, ok := m.(*automation.Shell)
	if !ok {
		return nil, nil, notInitialized(automation.ShellModule)
	}
	return sh, s, nil
}

func logModule(ctx context.Context) (*automation.Log, error) {
	s, err := session(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.Module(automation.LogModule)
	if err != nil {
		return nil, err
	}
	l, ok := m.(*automation.Log)
	if !ok {
		return nil, notInitialized(automation.LogModule)
	}
	return l, nil
}

func startTransaction(ctx context.Context, m *engine.Match) error {
	s, err := session(ctx)
	if err != nil {
		return err
	}
	s.SetTransaction(m.Args[0])
	return nil
}

func logInfo(ctx context.Context, m *engine.Match) error {
	l, err := logModule(ctx)
	if err != nil {
		return err
	}
	return l.Info(ctx, m.Args[0])
}

func logWarn(ctx context.Context, m *engine.Match) error {
	l, err := logModule(ctx)
	if err != nil {
		return err
	}
	return l.Warn(ctx, m.Args[0])
}

func runCommand(ctx context.Context, m *engine.Match) error {
	sh, _, err := shell(ctx)
	if err != nil {
		return err
	}
	_, err = sh.Exec(ctx, m.Args[0])
	return err
}

func commandPrints(ctx context.Context, m *engine.Match) error {
	sh, s, err := shell(ctx)
	if err != nil {
		return err
	}
	cmd, want := m.Args[0], m.Args[1]
	out, err := sh.Exec(ctx, cmd)
	if err != nil {
		return err
	}
	return s.Assert(ctx, "assertOutput", func(t assert.TestingT) bool {
		return assert.Contains(t, out, want, "output of %q", cmd)
	})
}

func webOpen(ctx context.Context, m *engine.Match) error {
	d, _, err := webDriver(ctx)
	if err != nil {
		return err
	}
	return d.Open(ctx, m.Args[0])
}

func webClick(ctx context.Context, m *engine.Match) error {
	d, _, err := webDriver(ctx)
	if err != nil {
		return err
	}
	return d.Click(ctx, m.Args[0])
}

func webType(ctx context.Context, m *engine.Match) error {
	d, _, err := webDriver(ctx)
	if err != nil {
		return err
	}
	return d.Type(ctx, m.Args[1], m.Args[0])
}

func webVisible(ctx context.Context, m *engine.Match) error {
	d, _, err := webDriver(ctx)
	if err != nil {
		return err
	}
	return d.WaitForVisible(ctx, m.Args[0], 0)
}

func webContains(ctx context.Context, m *engine.Match) error {
	d, s, err := webDriver(ctx)
	if err != nil {
		return err
	}
	sel, want := m.Args[0], m.Args[1]
	text, err := d.GetText(ctx, sel)
	if err != nil {
		return err
	}
	return s.Assert(ctx, "assertText", func(t assert.TestingT) bool {
		return assert.Contains(t, text, want, "text of %s", sel)
	})
}

func webAssertTitle(ctx context.Context, m *engine.Match) error {
	d, _, err := webDriver(ctx)
	if err != nil {
		return err
	}
	return d.AssertTitle(ctx, m.Args[0])
}

func webVerifyTitle(ctx context.Context, m *engine.Match) error {
	d, _, err := webDriver(ctx)
	if err != nil {
		return err
	}
	return d.VerifyTitle(ctx, m.Args[0])
}

// webExecute evaluates the doc string of the step in the page.
func webExecute(ctx context.Context, m *engine.Match) error {
	if m.DocString == "" {
		return failure.New(failure.ParametersError, "the script is missing")
	}
	d, _, err := webDriver(ctx)
	if err != nil {
		return err
	}
	var res interface{}
	return d.Execute(ctx, m.DocString, &res)
}

func mobTap(ctx context.Context, m *engine.Match) error {
	d, _, err := mobDriver(ctx)
	if err != nil {
		return err
	}
	x, _ := strconv.Atoi(m.Args[0])
	y, _ := strconv.Atoi(m.Args[1])
	return d.Tap(ctx, x, y)
}

func mobType(ctx context.Context, m *engine.Match) error {
	d, _, err := mobDriver(ctx)
	if err != nil {
		return err
	}
	return d.TypeText(ctx, m.Args[0])
}

func mobPress(ctx context.Context, m *engine.Match) error {
	d, _, err := mobDriver(ctx)
	if err != nil {
		return err
	}
	return d.PressKey(ctx, m.Args[0])
}

func mobLaunch(ctx context.Context, m *engine.Match) error {
	d, _, err := mobDriver(ctx)
	if err != nil {
		return err
	}
	return d.LaunchApp(ctx, m.Args[0])
}

func mobProp(ctx context.Context, m *engine.Match) error {
	d, s, err := mobDriver(ctx)
	if err != nil {
		return err
	}
	name, want := m.Args[0], m.Args[1]
	got, err := d.GetProp(ctx, name)
	if err != nil {
		return err
	}
	return s.Assert(ctx, "assertProperty", func(t assert.TestingT) bool {
		return assert.Equal(t, want, got, "property %s", name)
	})
}

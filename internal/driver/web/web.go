// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package web implements the web automation module on top of the Chrome
// DevTools protocol.
package web

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/automation"
	"go.chromium.org/featrun/internal/driver"
	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/logging"
)

// ModuleName is the name web commands are reported under.
const ModuleName = "web"

const defaultTimeout = 60 * time.Second

// Options configures the browser.
type Options struct {
	// BrowserPath is the browser executable. chromedp looks up Chrome if it
	// is empty.
	BrowserPath string
	Headless    bool
	Width       int
	Height      int
	// Args are extra command line switches such as "--lang=en".
	Args []string
	// Timeout is the default timeout of a command.
	Timeout time.Duration
}

// OptionsFromCaps derives Options from session capabilities. It returns
// false if caps do not ask for a browser supported by this module.
func OptionsFromCaps(caps driver.Caps) (Options, bool) {
	switch strings.ToLower(caps.String("browserName")) {
	case "chrome", "chromium":
	default:
		return Options{}, false
	}
	o := Options{Width: 1920, Height: 1080, Timeout: defaultTimeout}
	chrome := caps.Sub("goog:chromeOptions")
	o.BrowserPath = chrome.String("binary")
	for _, a := range chrome.Strings("args") {
		if a == "--headless" || strings.HasPrefix(a, "--headless=") {
			o.Headless = true
			continue
		}
		o.Args = append(o.Args, a)
	}
	if ms := caps.Int("timeout", 0); ms > 0 {
		o.Timeout = time.Duration(ms) * time.Millisecond
	}
	return o, true
}

func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", o.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if o.Width > 0 && o.Height > 0 {
		opts = append(opts, chromedp.WindowSize(o.Width, o.Height))
	}
	if o.BrowserPath != "" {
		opts = append(opts, chromedp.ExecPath(o.BrowserPath))
	}
	for _, a := range o.Args {
		name, val := parseSwitch(a)
		opts = append(opts, chromedp.Flag(name, val))
	}
	return opts
}

// parseSwitch splits "--name=value" into a chromedp flag.
func parseSwitch(s string) (string, interface{}) {
	s = strings.TrimLeft(s, "-")
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, true
}

// Driver is the web module. Its commands are reported as command events of
// the session it is registered to.
type Driver struct {
	s       *automation.Session
	timeout time.Duration

	bctx        context.Context // browser context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// Open starts a browser and registers the web module to s. Startup failures
// are classified as init failures.
func Open(ctx context.Context, s *automation.Session, o Options) (*Driver, error) {
	actx, allocCancel := chromedp.NewExecAllocator(context.Background(), o.allocatorOptions()...)
	bctx, cancel := chromedp.NewContext(actx, chromedp.WithLogf(func(format string, args ...interface{}) {
		logging.Debugf(ctx, "chrome: "+format, args...)
	}))
	// The first Run starts the browser.
	if err := chromedp.Run(bctx); err != nil {
		cancel()
		allocCancel()
		return nil, failure.AsError(failure.ResolveSeleniumInit(err))
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	d := &Driver{s: s, timeout: timeout, bctx: bctx, cancel: cancel, allocCancel: allocCancel}
	if err := s.Register(d); err != nil {
		d.Close(ctx)
		return nil, err
	}
	logging.Infof(ctx, "Started browser (headless=%v)", o.Headless)
	return d, nil
}

// Name implements automation.Module.
func (*Driver) Name() string { return ModuleName }

// Close shuts down the browser.
func (d *Driver) Close(ctx context.Context) error {
	d.cancel()
	d.allocCancel()
	return nil
}

// run runs actions against the browser, bounded by the command timeout and
// ctx.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = d.timeout
	}
	actx, cancel := context.WithTimeout(d.bctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(actx, actions...)
}

func (d *Driver) call(ctx context.Context, command, sel string, timeout time.Duration, actions ...chromedp.Action) error {
	return d.s.Call(ctx, ModuleName, command, func(ctx context.Context) error {
		return mapError(d.run(ctx, timeout, actions...), sel)
	})
}

// Open navigates to url.
func (d *Driver) Open(ctx context.Context, url string) error {
	return d.call(ctx, "open", "", 0, chromedp.Navigate(url))
}

// Click clicks the element matching the CSS selector sel.
func (d *Driver) Click(ctx context.Context, sel string) error {
	return d.call(ctx, "click", sel, 0,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery))
}

// Type sends text to the element matching sel.
func (d *Driver) Type(ctx context.Context, sel, text string) error {
	return d.call(ctx, "type", sel, 0,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, text, chromedp.ByQuery))
}

// GetText returns the visible text of the element matching sel.
func (d *Driver) GetText(ctx context.Context, sel string) (string, error) {
	var text string
	err := d.call(ctx, "getText", sel, 0, chromedp.Text(sel, &text, chromedp.ByQuery, chromedp.NodeVisible))
	return text, err
}

// GetTitle returns the title of the current page.
func (d *Driver) GetTitle(ctx context.Context) (string, error) {
	var title string
	err := d.call(ctx, "getTitle", "", 0, chromedp.Title(&title))
	return title, err
}

// WaitForVisible waits up to timeout for the element matching sel to be
// visible. A zero timeout means the command timeout.
func (d *Driver) WaitForVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return d.call(ctx, "waitForVisible", sel, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// WaitForExist waits up to timeout for an element matching sel to exist.
func (d *Driver) WaitForExist(ctx context.Context, sel string, timeout time.Duration) error {
	return d.call(ctx, "waitForExist", sel, timeout, chromedp.WaitReady(sel, chromedp.ByQuery))
}

// Execute evaluates script in the page and stores its result in res.
func (d *Driver) Execute(ctx context.Context, script string, res interface{}) error {
	return d.call(ctx, "execute", "", 0, chromedp.Evaluate(script, res))
}

// AssertTitle fails with ASSERT_ERROR if the page title is not want.
func (d *Driver) AssertTitle(ctx context.Context, want string) error {
	return d.checkTitle(ctx, "assertTitle", want)
}

// VerifyTitle is similar to AssertTitle, but the failure is VERIFY_ERROR and
// does not stop the scenario.
func (d *Driver) VerifyTitle(ctx context.Context, want string) error {
	return d.checkTitle(ctx, "verifyTitle", want)
}

func (d *Driver) checkTitle(ctx context.Context, command, want string) error {
	return d.s.Call(ctx, ModuleName, command, func(ctx context.Context) error {
		var title string
		if err := d.run(ctx, 0, chromedp.Title(&title)); err != nil {
			return mapError(err, "")
		}
		return automation.Check(func(t assert.TestingT) bool {
			return assert.Equal(t, want, title, "page title")
		})
	})
}

// mapError converts a chromedp error into a driver error the failure
// classifier understands. sel is the selector the command waited for, if
// any.
func mapError(err error, sel string) error {
	if err == nil {
		return nil
	}
	var exc *runtime.ExceptionDetails
	switch {
	case errors.As(err, &exc):
		return &driver.Error{Kind: "JavaScriptError", Msg: exc.Error()}
	case errors.Is(err, chromedp.ErrNoResults):
		return &driver.Error{Kind: "NoSuchElement", Msg: elementMessage(sel)}
	case errors.Is(err, chromedp.ErrNotVisible):
		return &driver.Error{Kind: "ElementNotVisible", Msg: fmt.Sprintf("Element %s is not visible", sel)}
	case errors.Is(err, chromedp.ErrInvalidTarget), errors.Is(err, chromedp.ErrChannelClosed):
		return &driver.Error{Kind: "NoSuchWindow", Msg: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		if sel != "" {
			return &driver.Error{Kind: "NoSuchElement", Msg: elementMessage(sel)}
		}
		return &driver.Error{Kind: "Timeout", Msg: "command timed out"}
	}
	return err
}

func elementMessage(sel string) string {
	return fmt.Sprintf("Unable to find element: %s", sel)
}

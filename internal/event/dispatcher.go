// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package event

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"go.chromium.org/featrun/errors"
)

// Handler is called for every dispatched event it subscribed to.
// Handlers must not retain ev after returning.
type Handler func(ev *Event)

// Dispatcher delivers events to handlers subscribed by name.
// It is safe to use from multiple goroutines; handlers for a single Dispatch
// call run sequentially on the calling goroutine, in subscription order.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[Name][]Handler
}

// NewDispatcher returns a Dispatcher without subscribers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Name][]Handler)}
}

// Subscribe registers h for events named name.
func (d *Dispatcher) Subscribe(name Name, h Handler) error {
	if !name.Valid() {
		return errors.Errorf("unknown event %q", name)
	}
	if h == nil {
		return errors.Errorf("nil handler for event %q", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = append(d.handlers[name], h)
	return nil
}

// SubscribeAll registers h for every event name.
func (d *Dispatcher) SubscribeAll(h Handler) error {
	names := maps.Keys(validNames)
	slices.Sort(names)
	for _, n := range names {
		if err := d.Subscribe(n, h); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch delivers ev to its subscribers and returns how many handlers ran.
// Events with unknown names are dropped.
func (d *Dispatcher) Dispatch(ev *Event) int {
	if ev == nil {
		return 0
	}
	d.mu.RLock()
	hs := append([]Handler(nil), d.handlers[ev.Name]...)
	d.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
	return len(hs)
}

// Names returns the sorted names that have at least one subscriber.
func (d *Dispatcher) Names() []Name {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := maps.Keys(d.handlers)
	slices.Sort(names)
	return names
}

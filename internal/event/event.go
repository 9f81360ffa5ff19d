// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package event defines the lifecycle events emitted by the test engine and
// a dispatcher delivering them to subscribers.
//
// Payload fields set per event name:
//
//	feature:before, feature:after    URI, Feature
//	scenario:before, scenario:after  URI, Feature, Scenario, SourceLocation
//	step:before                      URI, Feature, Scenario, Step, SourceLocation
//	step:after                       as step:before, plus Result
//	command:before                   Command
//	command:after                    Command, plus Result if the command failed
//
// Time is set on every event by the process that emitted it.
package event

import (
	"fmt"
	"time"

	"go.chromium.org/featrun/internal/failure"
	"go.chromium.org/featrun/internal/result"
)

// Name identifies a kind of event.
type Name string

// Event names.
const (
	FeatureBefore  Name = "feature:before"
	FeatureAfter   Name = "feature:after"
	ScenarioBefore Name = "scenario:before"
	ScenarioAfter  Name = "scenario:after"
	StepBefore     Name = "step:before"
	StepAfter      Name = "step:after"
	CommandBefore  Name = "command:before"
	CommandAfter   Name = "command:after"
)

var validNames = map[Name]struct{}{
	FeatureBefore:  {},
	FeatureAfter:   {},
	ScenarioBefore: {},
	ScenarioAfter:  {},
	StepBefore:     {},
	StepAfter:      {},
	CommandBefore:  {},
	CommandAfter:   {},
}

// Valid reports whether n is a known event name.
func (n Name) Valid() bool {
	_, ok := validNames[n]
	return ok
}

// Location is a position within a feature file.
type Location struct {
	Line int `json:"line"`
}

// Tag is a tag attached to a feature or a scenario.
type Tag struct {
	Name string `json:"name"`
	Line int    `json:"line,omitempty"`
}

// Node describes a feature, a scenario or a step.
type Node struct {
	Keyword  string   `json:"keyword,omitempty"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Tags     []Tag    `json:"tags,omitempty"`
}

// SourceLocation is the resolved location of a scenario. For scenario
// outlines it points at the examples row the scenario was generated from.
type SourceLocation struct {
	URI  string `json:"uri"`
	Line int    `json:"line"`
}

// Result is the outcome of a step or a command.
type Result struct {
	Status   result.Status `json:"status"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    *failure.Raw  `json:"error,omitempty"`
}

// Command describes an automation command executed by a step.
type Command struct {
	Module      string `json:"module"`
	Name        string `json:"name"`
	Transaction string `json:"transaction,omitempty"`
}

// Event is a single lifecycle event.
type Event struct {
	Time           time.Time       `json:"time"`
	Name           Name            `json:"name"`
	URI            string          `json:"uri,omitempty"`
	Feature        *Node           `json:"feature,omitempty"`
	Scenario       *Node           `json:"scenario,omitempty"`
	Step           *Node           `json:"step,omitempty"`
	Result         *Result         `json:"result,omitempty"`
	SourceLocation *SourceLocation `json:"sourceLocation,omitempty"`
	Command        *Command        `json:"command,omitempty"`
}

func (e *Event) String() string {
	switch {
	case e.Step != nil:
		return fmt.Sprintf("%s %s:%d", e.Name, e.URI, e.Step.Location.Line)
	case e.Scenario != nil:
		return fmt.Sprintf("%s %s:%d", e.Name, e.URI, e.Scenario.Location.Line)
	case e.Feature != nil:
		return fmt.Sprintf("%s %s:%d", e.Name, e.URI, e.Feature.Location.Line)
	case e.Command != nil:
		return fmt.Sprintf("%s %s.%s", e.Name, e.Command.Module, e.Command.Name)
	default:
		return string(e.Name)
	}
}

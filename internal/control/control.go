// Copyright 2024 The ChromiumOS Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package control writes and reads the messages exchanged between the
// orchestrator and a worker process.
//
// Messages are newline-delimited JSON objects discriminated by their "type"
// field. The orchestrator writes to the worker's stdin and reads from its
// stdout. A typical sequence is as follows:
//
//	Invoke (init)            orchestrator -> worker
//		Log                  worker -> orchestrator
//	InvokeResult (init)      worker -> orchestrator
//	Invoke (run)             orchestrator -> worker
//		Event (feature:before)
//		Event (scenario:before)
//		Log
//		...
//	InvokeResult (run)
//	Exit                     orchestrator -> worker
package control

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.chromium.org/featrun/errors"
	"go.chromium.org/featrun/internal/event"
	"go.chromium.org/featrun/internal/failure"
)

// Method is a method a worker exposes to the orchestrator.
type Method string

// Methods exposed by workers.
const (
	MethodInit    Method = "init"
	MethodRun     Method = "run"
	MethodDispose Method = "dispose"
)

// Methods lists every valid Method.
var Methods = []Method{MethodInit, MethodRun, MethodDispose}

// Valid reports whether m is one of Methods.
func (m Method) Valid() bool {
	for _, v := range Methods {
		if m == v {
			return true
		}
	}
	return false
}

// UnknownMethodError is returned when a method outside Methods is invoked.
type UnknownMethodError struct {
	Method Method
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("Method %q does not exist", string(e.Method))
}

// Type discriminates messages on the wire.
type Type string

// Message types.
const (
	TypeInvoke       Type = "invoke"
	TypeInvokeResult Type = "invoke:result"
	TypeLog          Type = "log"
	TypeEvent        Type = "event"
	TypeExit         Type = "exit"
)

// ErrUnknownType is returned by MessageReader.ReadMessage for a well-formed
// message of an unknown type. Reading may continue after it.
var ErrUnknownType = errors.New("unknown message type")

// Msg is an interface implemented by all message types.
type Msg interface {
	// isMsg indicates that a type is a message type. It is not intended to be called.
	// Since this method is unexported, no other packages can define message types.
	isMsg()
}

// Invoke asks the worker to call a method.
type Invoke struct {
	// CallID correlates the request with its InvokeResult. It is unique per
	// worker.
	CallID uint64            `json:"callId"`
	Method Method            `json:"method"`
	Args   []json.RawMessage `json:"args"`
}

func (*Invoke) isMsg() {}

// InvokeResult carries the outcome of an Invoke.
type InvokeResult struct {
	CallID uint64          `json:"callId"`
	Method Method          `json:"method"`
	Error  *failure.Raw    `json:"error,omitempty"`
	Retval json.RawMessage `json:"retval,omitempty"`
}

func (*InvokeResult) isMsg() {}

// Log contains a logging message produced by the worker.
type Log struct {
	Time  time.Time    `json:"time"`
	Level string       `json:"level"`
	Msg   string       `json:"msg"`
	Src   string       `json:"src,omitempty"`
	Err   *failure.Raw `json:"err,omitempty"`
}

func (*Log) isMsg() {}

// Event relays a lifecycle event emitted by the worker's engine.
type Event struct {
	*event.Event
}

func (*Event) isMsg() {}

// Exit asks the worker to dispose its resources and exit with Status.
type Exit struct {
	Status int `json:"status"`
}

func (*Exit) isMsg() {}

// WorkerConfig is the second argument of the init method.
type WorkerConfig struct {
	// Specs are absolute paths of the feature files to run.
	Specs []string `json:"specs"`
	// Cwd is the directory shell commands run in.
	Cwd string `json:"cwd,omitempty"`

	Tags        []string      `json:"tags,omitempty"`
	FailFast    bool          `json:"failFast,omitempty"`
	Strict      bool          `json:"strict,omitempty"`
	StepTimeout time.Duration `json:"stepTimeout,omitempty"`
}

// MessageWriter writes messages to a stream.
// It is safe to call its methods concurrently from multiple goroutines.
type MessageWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewMessageWriter returns a new MessageWriter for writing to w.
func NewMessageWriter(w io.Writer) *MessageWriter {
	return &MessageWriter{enc: json.NewEncoder(w)}
}

// WriteMessage writes msg followed by a newline.
func (mw *MessageWriter) WriteMessage(msg Msg) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	switch v := msg.(type) {
	case *Invoke:
		return mw.enc.Encode(&struct {
			Type Type `json:"type"`
			*Invoke
		}{TypeInvoke, v})
	case *InvokeResult:
		return mw.enc.Encode(&struct {
			Type Type `json:"type"`
			*InvokeResult
		}{TypeInvokeResult, v})
	case *Log:
		return mw.enc.Encode(&struct {
			Type Type `json:"type"`
			*Log
		}{TypeLog, v})
	case *Event:
		if v.Event == nil {
			return errors.New("unable to encode empty event")
		}
		return mw.enc.Encode(&struct {
			Type Type `json:"type"`
			*event.Event
		}{TypeEvent, v.Event})
	case *Exit:
		return mw.enc.Encode(&struct {
			Type Type `json:"type"`
			*Exit
		}{TypeExit, v})
	default:
		return errors.New("unable to encode message of unknown type")
	}
}

// MessageReader reads messages from a stream.
type MessageReader json.Decoder

// NewMessageReader returns a new MessageReader for reading from r.
func NewMessageReader(r io.Reader) *MessageReader {
	return (*MessageReader)(json.NewDecoder(r))
}

// More returns true if more messages are available.
func (mr *MessageReader) More() bool {
	return (*json.Decoder)(mr).More()
}

// ReadMessage reads and returns the next message. It returns io.EOF at the
// end of the stream and an error wrapping ErrUnknownType for messages it
// cannot interpret; any other error leaves the stream unusable.
func (mr *MessageReader) ReadMessage() (Msg, error) {
	dec := (*json.Decoder)(mr)
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, err
		}
		return nil, errors.Wrap(err, "unable to decode message")
	}
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, errors.Wrap(ErrUnknownType, err.Error())
	}

	var msg Msg
	switch head.Type {
	case TypeInvoke:
		msg = &Invoke{}
	case TypeInvokeResult:
		msg = &InvokeResult{}
	case TypeLog:
		msg = &Log{}
	case TypeEvent:
		msg = &Event{Event: &event.Event{}}
	case TypeExit:
		msg = &Exit{}
	default:
		return nil, errors.Wrapf(ErrUnknownType, "type %q", head.Type)
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, errors.Wrapf(ErrUnknownType, "malformed %s message: %v", head.Type, err)
	}
	return msg, nil
}

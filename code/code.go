// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

// Package code defines the error kinds reported by the pipechan packages.
package code

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// A Code classifies an error reported by a channel operation. Every public
// operation of a channel either succeeds or fails with an error whose Code is
// one of the values defined here (or registered by an application).
type Code int32

func (c Code) String() string {
	mu.RLock()
	defer mu.RUnlock()
	if s, ok := stdError[c]; ok {
		return s
	}
	return fmt.Sprintf("error code %d", c)
}

// A Coder is a value that can report an error code value.
type Coder interface {
	Code() Code
}

// Err converts c to an error value, which is nil for code.NoError and
// otherwise a comparable sentinel reporting c. Err returns equal values for
// equal codes, so the result may be used as the target of errors.Is.
func (c Code) Err() error {
	if c == NoError {
		return nil
	}
	return codeError(c)
}

type codeError Code

func (e codeError) Error() string { return Code(e).String() }

// Code satisfies the Coder interface.
func (e codeError) Code() Code { return Code(e) }

// Conditions reported by the channel core.
const (
	NoError            Code = 0  // Denotes a nil error (used by FromError)
	SystemError        Code = 1  // Errors from the operating environment
	AlreadyInitialized Code = 10 // Initialize called more than once
	NotInitialized     Code = 11 // Operation before Initialize
	InvalidState       Code = 12 // Manual receive while receive events are enabled
	Disposed           Code = 13 // Operation after the channel was closed
	Cancelled          Code = 20 // The caller's context ended (context.Canceled, context.DeadlineExceeded)
	PipeBroken         Code = 30 // The peer closed its end of the pipe
	Truncated          Code = 31 // The stream ended inside a frame
	FrameTooLarge      Code = 32 // A frame exceeds the configured size limit
	TypeMismatch       Code = 40 // A received value has the wrong type
	UnknownType        Code = 41 // A type name is not present in the registry
)

var (
	mu       sync.RWMutex
	stdError = map[Code]string{
		NoError:            "no error (success)",
		SystemError:        "system error",
		AlreadyInitialized: "channel already initialized",
		NotInitialized:     "channel not initialized",
		InvalidState:       "invalid channel state",
		Disposed:           "channel disposed",
		Cancelled:          "operation cancelled",
		PipeBroken:         "pipe broken",
		Truncated:          "frame truncated",
		FrameTooLarge:      "frame too large",
		TypeMismatch:       "type mismatch",
		UnknownType:        "unknown type",
	}
)

// Register adds a new Code value with the specified message string.  This
// function will panic if the proposed value is already registered.
func Register(value int32, message string) Code {
	code := Code(value)
	mu.Lock()
	defer mu.Unlock()
	if s, ok := stdError[code]; ok {
		panic(fmt.Sprintf("code %d is already registered for %q", code, s))
	}
	stdError[code] = message
	return code
}

// FromError returns a Code to categorize the specified error.
// If err == nil, it returns code.NoError.
// If err is (or wraps) a Coder, it returns the reported code value.
// If err is context.Canceled or context.DeadlineExceeded, it returns code.Cancelled.
// Otherwise it returns code.SystemError.
func FromError(err error) Code {
	if err == nil {
		return NoError
	}
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Cancelled
	}
	return SystemError
}

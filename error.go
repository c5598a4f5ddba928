// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package pipechan

import (
	"fmt"
	"reflect"

	"github.com/creachadair/pipechan/code"
)

// Errors reported by channel operations. Each is the sentinel for the
// corresponding code.Code, for use with errors.Is; code.FromError classifies
// an arbitrary error.
var (
	// ErrAlreadyInitialized is reported by Initialize on a channel that has
	// already been initialized.
	ErrAlreadyInitialized = code.AlreadyInitialized.Err()

	// ErrNotInitialized is reported by an operation that requires an
	// initialized channel.
	ErrNotInitialized = code.NotInitialized.Err()

	// ErrInvalidState is reported by Receive while receive events are
	// enabled.
	ErrInvalidState = code.InvalidState.Err()

	// ErrDisposed is reported by an operation on a closed channel.
	ErrDisposed = code.Disposed.Err()

	// ErrCancelled is reported when the context of an operation ends before
	// the operation completes. The error also wraps the context error.
	ErrCancelled = code.Cancelled.Err()

	// ErrPipeBroken is reported when the peer has closed its end.
	ErrPipeBroken = code.PipeBroken.Err()

	// ErrTruncated is reported when the stream ends partway through a frame.
	ErrTruncated = code.Truncated.Err()

	// ErrFrameTooLarge is reported for a message that exceeds the frame size
	// limit of the channel.
	ErrFrameTooLarge = code.FrameTooLarge.Err()

	// ErrTypeMismatch is reported when a received value does not have the
	// type requested by the receiver.
	ErrTypeMismatch = code.TypeMismatch.Err()
)

func cancelled(err error) error { return fmt.Errorf("%w: %w", ErrCancelled, err) }

// as converts v to a T, or reports ErrTypeMismatch. A nil value is accepted
// for any T whose zero value is nil.
func as[T any](v any) (T, error) {
	if t, ok := v.(T); ok {
		return t, nil
	}
	var zero T
	want := reflect.TypeFor[T]()
	if v == nil && nillable(want) {
		return zero, nil
	}
	return zero, fmt.Errorf("%w: got %T, want %v", ErrTypeMismatch, v, want)
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

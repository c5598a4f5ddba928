// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package channel

import (
	"context"
	"time"
)

// aLongTimeAgo is a deadline in the past, used to interrupt blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

type readDeadliner interface{ SetReadDeadline(time.Time) error }

type writeDeadliner interface{ SetWriteDeadline(time.Time) error }

func readDeadline(r any) func(time.Time) error {
	if d, ok := r.(readDeadliner); ok {
		return d.SetReadDeadline
	}
	return nil
}

func writeDeadline(w any) func(time.Time) error {
	if d, ok := w.(writeDeadliner); ok {
		return d.SetWriteDeadline
	}
	return nil
}

// watch arranges for set to be called with a deadline in the past when ctx
// ends, interrupting any I/O blocked on the stream. The caller must call the
// returned function when its I/O is complete; it clears the deadline again if
// the interruption fired, so the stream remains usable.
func watch(ctx context.Context, set func(time.Time) error) (release func()) {
	if set == nil || ctx.Done() == nil {
		return func() {}
	}
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		set(aLongTimeAgo)
	})
	return func() {
		if !stop() {
			<-fired
			set(time.Time{})
		}
	}
}

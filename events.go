// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package pipechan

import (
	"context"
	"errors"
)

// ReceiveEvents reports whether receive events are enabled on c.
func (c *Channel) ReceiveEvents() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// SetReceiveEvents enables or disables receive events on c. Setting the
// current value again has no effect.
//
// While receive events are enabled, a goroutine owned by c receives each
// value from the peer and passes it to every function registered by
// OnReceive, in the order the values arrive. Manual calls to Receive report
// ErrInvalidState until receive events are disabled again.
//
// Enabling receive events on an uninitialized channel reports
// ErrNotInitialized. Disabling them stops the receive goroutine and waits for
// it to exit; a frame it was reading is left for the next receiver to finish.
func (c *Channel) SetReceiveEvents(on bool) error {
	c.toggle.Lock()
	defer c.toggle.Unlock()

	c.mu.Lock()
	if on == c.events {
		c.mu.Unlock()
		return nil
	}
	if on {
		defer c.mu.Unlock()
		switch c.state {
		case Uninitialized:
			return ErrNotInitialized
		case Disposed:
			return ErrDisposed
		}
		ctx, cancel := context.WithCancel(context.Background())
		c.events, c.stop, c.done = true, cancel, make(chan struct{})
		go c.receiveLoop(ctx, c.done)
		c.log.Debug().Msg("receive events enabled")
		return nil
	}

	stop, done := c.stop, c.done
	c.events, c.stop, c.done = false, nil, nil
	c.mu.Unlock()

	stop()
	<-done
	c.log.Debug().Msg("receive events disabled")
	return nil
}

// OnReceive registers f to be called with each value received while receive
// events are enabled. Functions are called in registration order on the
// receive goroutine, and must not call SetReceiveEvents(false) or Close.
func (c *Channel) OnReceive(f func(any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRecv = append(c.onRecv, f)
}

// OnReceiveError registers f to be called with each error reported while
// receive events are enabled, other than cancellation. A value that cannot
// be decoded is reported and skipped; any other error is reported once and
// stops the receive goroutine.
func (c *Channel) OnReceiveError(f func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRecvErr = append(c.onRecvErr, f)
}

func (c *Channel) observers() ([]func(any), []func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onRecv, c.onRecvErr
}

// receiveLoop receives values until ctx ends or the stream fails, and
// delivers them to the OnReceive observers. It closes done when it exits.
func (c *Channel) receiveLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		bits, err := c.recv(ctx, false)
		if ctx.Err() != nil && (err == nil || errors.Is(err, ErrCancelled)) {
			if err == nil {
				c.deliver(bits)
			}
			return
		} else if err != nil {
			c.log.Warn().Err(err).Msg("receive loop stopped")
			_, onErr := c.observers()
			for _, f := range onErr {
				f(err)
			}
			return
		}
		c.deliver(bits)
	}
}

func (c *Channel) deliver(bits []byte) {
	onRecv, onErr := c.observers()
	v, err := c.codec.Decode(bits)
	if err != nil {
		c.log.Warn().Err(err).Msg("discarding undecodable message")
		for _, f := range onErr {
			f(err)
		}
		return
	}
	for _, f := range onRecv {
		f(v)
	}
}

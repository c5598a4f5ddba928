// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package pipechan

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/creachadair/pipechan/channel"
	"github.com/creachadair/pipechan/codec"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// State is the lifecycle state of a Channel. A channel moves from
// Uninitialized to Initialized to Disposed, and never backward.
type State int32

const (
	Uninitialized State = iota // constructed, Initialize not yet complete
	Initialized                // ready for Send and Receive
	Disposed                   // closed; terminal
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Disposed:
		return "disposed"
	}
	return "invalid state"
}

// A Channel is one endpoint of a bidirectional message channel built on a
// pair of unidirectional streams. Values sent on one endpoint are received on
// the other in the order they were sent.
//
// A Channel must be initialized before use, and should be closed when it is
// no longer needed. The methods of a Channel are safe for concurrent use by
// multiple goroutines; concurrent sends are serialized, and at most one
// receiver reads the inbound stream at a time.
type Channel struct {
	ch    channel.Channel // framed streams, exclusively owned
	codec codec.Codec
	log   zerolog.Logger
	stats *counters

	// Role hooks. They receive the channel as an argument and must not retain
	// it, or the finalizer set by NewChannel can never run.
	hello   func(context.Context, *Channel) error // handshake run by Initialize, or nil
	release func()                                // cleanup run by Close, or nil

	rsem   *semaphore.Weighted // held by the active reader of the inbound stream
	wsem   *semaphore.Weighted // held by the active writer of the outbound stream
	initMu sync.Mutex          // serializes Initialize
	toggle sync.Mutex          // serializes receive-event toggles and Close

	mu        sync.Mutex // protects the fields below
	state     State
	events    bool               // receive-event mode is enabled
	stop      context.CancelFunc // cancels the receive loop, or nil
	done      chan struct{}      // closed when the receive loop exits, or nil
	onRecv    []func(any)
	onRecvErr []func(error)
	onDispose []func()
}

// NewChannel returns a new uninitialized channel that receives from r and
// sends to w. The channel takes ownership of both streams, and closes them
// when it is closed. A channel constructed by NewChannel performs no
// handshake during Initialize.
//
// Send and Receive can be interrupted by cancellation only if the streams
// support deadlines, as *os.File values obtained from os.Pipe do.
func NewChannel(r io.ReadCloser, w io.WriteCloser, opts *Options) *Channel {
	c := &Channel{
		ch:    opts.framing()(r, w),
		codec: opts.codec(),
		log:   opts.logger(),
		stats: newCounters(),
		rsem:  semaphore.NewWeighted(1),
		wsem:  semaphore.NewWeighted(1),
	}
	channelsActive.Add(1)
	runtime.SetFinalizer(c, func(c *Channel) { c.Close() })
	return c
}

// State reports the current lifecycle state of c.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Initialize prepares c for use, performing the handshake for its role if it
// has one. It reports ErrAlreadyInitialized if c has already been
// initialized, and ErrDisposed if c has been closed.
//
// If the handshake fails, including by cancellation of ctx, c remains
// uninitialized. Any handshake bytes already exchanged are not recovered, so
// the caller should close c rather than retry.
func (c *Channel) Initialize(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	switch c.State() {
	case Initialized:
		return ErrAlreadyInitialized
	case Disposed:
		return ErrDisposed
	}
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	if c.hello != nil {
		if err := c.hello(ctx, c); err != nil {
			c.log.Debug().Err(err).Msg("handshake failed")
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Disposed {
		return ErrDisposed
	}
	c.state = Initialized
	c.log.Debug().Msg("channel initialized")
	return nil
}

// ready reports an error if c is not initialized.
func (c *Channel) ready() error {
	switch c.State() {
	case Uninitialized:
		return ErrNotInitialized
	case Disposed:
		return ErrDisposed
	}
	return nil
}

// Send encodes v and transmits it to the peer. It reports ErrNotInitialized
// if c has not been initialized, and ErrCancelled if ctx ends before the
// message is written.
//
// If ctx ends after part of the message was written, Send reports
// ErrCancelled but the rest of the message is written ahead of the next Send,
// and the peer receives it. Do not resend a message after a cancelled Send
// unless duplicates are acceptable.
func (c *Channel) Send(ctx context.Context, v any) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.send(ctx, v)
}

func (c *Channel) send(ctx context.Context, v any) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	bits, err := c.codec.Encode(v)
	if err != nil {
		return err
	}
	if err := c.wsem.Acquire(ctx, 1); err != nil {
		return cancelled(err)
	}
	defer c.wsem.Release(1)
	if err := c.ch.Send(ctx, bits); err != nil {
		return err
	}
	c.stats.sent(len(bits))
	return nil
}

// Receive blocks until a value is available from the peer, and returns it.
// Its dynamic type is the type of the value that was sent.
//
// Receive reports ErrNotInitialized if c has not been initialized,
// ErrInvalidState if receive events are enabled, and ErrCancelled if ctx ends
// before a complete message arrives.
func (c *Channel) Receive(ctx context.Context) (any, error) {
	if err := c.ready(); err != nil {
		return nil, err
	} else if c.ReceiveEvents() {
		return nil, ErrInvalidState
	}
	bits, err := c.recv(ctx, true)
	if err != nil {
		return nil, err
	}
	return c.codec.Decode(bits)
}

// Receive receives a value from c and returns it as a T. It reports an error
// wrapping ErrTypeMismatch if the value received is not a T. A nil value is
// accepted if T is an interface, pointer, map, slice, func, or channel type.
func Receive[T any](ctx context.Context, c *Channel) (T, error) {
	v, err := c.Receive(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return as[T](v)
}

// recv reads one frame from the inbound stream. If manual is true, the read
// is rejected if receive events are enabled once the reader holds the stream.
func (c *Channel) recv(ctx context.Context, manual bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}
	if err := c.rsem.Acquire(ctx, 1); err != nil {
		return nil, cancelled(err)
	}
	defer c.rsem.Release(1)
	if manual && c.ReceiveEvents() {
		return nil, ErrInvalidState
	}
	bits, err := c.ch.Recv(ctx)
	if err != nil {
		return nil, err
	}
	c.stats.received(len(bits))
	return bits, nil
}

// OnDispose registers f to be called once when c is closed.
func (c *Channel) OnDispose(f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDispose = append(c.onDispose, f)
}

// Close closes c, releasing both streams. If receive events are enabled,
// they are disabled first and the receive loop is stopped. Every function
// registered by OnDispose is then called once. Close is safe to call more
// than once; only the first call has any effect. Close always returns nil.
//
// Close must not be called from a function registered by OnReceive.
func (c *Channel) Close() error {
	c.toggle.Lock()
	c.mu.Lock()
	if c.state == Disposed {
		c.mu.Unlock()
		c.toggle.Unlock()
		return nil
	}
	prev := c.state
	c.state = Disposed
	stop, done := c.stop, c.done
	c.events, c.stop, c.done = false, nil, nil
	notify := c.onDispose
	c.onDispose = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
	c.toggle.Unlock()

	if err := c.ch.Close(); err != nil {
		c.log.Debug().Err(err).Msg("closing streams")
	}
	if c.release != nil {
		c.release()
	}
	runtime.SetFinalizer(c, nil)
	channelsActive.Add(-1)
	c.log.Debug().Stringer("from", prev).Msg("channel disposed")

	for _, f := range notify {
		f()
	}
	return nil
}

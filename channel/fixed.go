// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/creachadair/pipechan/code"
)

// DefaultMaxFrameSize is the payload size limit used by Fixed when its limit
// argument is zero.
const DefaultMaxFrameSize = 64 << 20

// HeaderLen is the size in bytes of the length prefix of a frame.
const HeaderLen = 4

// Fixed returns a framing that transmits and receives messages on r and wc,
// each message prefixed by its length as a 4-byte unsigned integer in native
// byte order.
//
// The limit bounds the payload size in bytes. If limit == 0 it uses
// DefaultMaxFrameSize; if limit < 0 any length representable by the prefix is
// accepted. A Send with a larger payload fails without writing. A Recv whose
// prefix exceeds the limit fails without reading the payload, and the channel
// is unusable thereafter.
func Fixed(limit int) Framing {
	max := uint64(limit)
	if limit == 0 {
		max = DefaultMaxFrameSize
	} else if limit < 0 || uint64(limit) > math.MaxUint32 {
		max = math.MaxUint32
	}
	return func(r io.ReadCloser, wc io.WriteCloser) Channel {
		return &fixed{rc: r, wc: wc, limit: max}
	}
}

// A fixed implements Channel. Messages sent on a fixed channel are framed with
// a fixed-width length prefix.
//
// Reads and writes interrupted by cancellation retain their progress, so a
// frame in flight is resumed by the next call rather than desynchronizing the
// stream.
type fixed struct {
	rc    io.ReadCloser
	wc    io.WriteCloser
	limit uint64

	// Inbound frame in progress.
	hdr  [HeaderLen]byte
	nhdr int    // bytes of hdr filled
	body []byte // payload buffer, non-nil once the prefix is complete
	nbod int    // bytes of body filled
	rerr error  // fatal read error, reported by all subsequent calls

	// Outbound bytes of an interrupted frame not yet written.
	pending []byte
	werr    error // fatal write error, reported by all subsequent calls
}

// Send implements part of the Channel interface.
func (c *fixed) Send(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	} else if c.werr != nil {
		return c.werr
	} else if uint64(len(msg)) > c.limit {
		return fmt.Errorf("%w: %d bytes exceeds limit %d", code.FrameTooLarge.Err(), len(msg), c.limit)
	}
	defer watch(ctx, writeDeadline(c.wc))()

	if len(c.pending) != 0 {
		n, err := c.wc.Write(c.pending)
		c.pending = c.pending[n:]
		if err != nil {
			return c.writeError(ctx, err)
		}
		c.pending = nil
	}

	frame := make([]byte, HeaderLen+len(msg))
	binary.NativeEndian.PutUint32(frame, uint32(len(msg)))
	copy(frame[HeaderLen:], msg)
	n, err := c.wc.Write(frame)
	if err != nil {
		if n > 0 {
			c.pending = frame[n:]
		}
		return c.writeError(ctx, err)
	}
	return nil
}

func (c *fixed) writeError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return cancelled(ctxErr)
	}
	switch {
	case isBrokenPipe(err), errors.Is(err, io.ErrClosedPipe):
		c.werr = fmt.Errorf("%w: %w", code.PipeBroken.Err(), err)
	case errors.Is(err, os.ErrClosed):
		c.werr = fmt.Errorf("%w: %w", code.Disposed.Err(), err)
	default:
		return err
	}
	return c.werr
}

// Recv implements part of the Channel interface.
func (c *fixed) Recv(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	} else if c.rerr != nil {
		return nil, c.rerr
	}
	defer watch(ctx, readDeadline(c.rc))()

	for c.body == nil {
		n, err := c.rc.Read(c.hdr[c.nhdr:])
		c.nhdr += n
		if c.nhdr == HeaderLen {
			size := uint64(binary.NativeEndian.Uint32(c.hdr[:]))
			if size > c.limit {
				c.rerr = fmt.Errorf("%w: %d bytes exceeds limit %d", code.FrameTooLarge.Err(), size, c.limit)
				return nil, c.rerr
			}
			c.body = make([]byte, size)
		} else if err != nil {
			return nil, c.readError(ctx, err)
		}
	}
	for c.nbod < len(c.body) {
		n, err := c.rc.Read(c.body[c.nbod:])
		c.nbod += n
		if err != nil && c.nbod < len(c.body) {
			return nil, c.readError(ctx, err)
		}
	}

	out := c.body
	c.nhdr, c.body, c.nbod = 0, nil, 0
	return out, nil
}

func (c *fixed) readError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		return cancelled(ctxErr)
	}
	switch {
	case err == io.EOF && c.nhdr == 0:
		c.rerr = code.PipeBroken.Err()
	case err == io.EOF || err == io.ErrUnexpectedEOF:
		got := c.nhdr + c.nbod
		want := HeaderLen + len(c.body)
		if c.body == nil {
			want = HeaderLen
		}
		c.rerr = fmt.Errorf("%w: got %d of %d bytes", code.Truncated.Err(), got, want)
	case isBrokenPipe(err), errors.Is(err, io.ErrClosedPipe):
		c.rerr = fmt.Errorf("%w: %w", code.PipeBroken.Err(), err)
	case errors.Is(err, os.ErrClosed):
		c.rerr = fmt.Errorf("%w: %w", code.Disposed.Err(), err)
	default:
		return err
	}
	return c.rerr
}

// Close implements part of the Channel interface. It closes both streams.
func (c *fixed) Close() error { return errors.Join(c.wc.Close(), c.rc.Close()) }

func cancelled(err error) error { return fmt.Errorf("%w: %w", code.Cancelled.Err(), err) }

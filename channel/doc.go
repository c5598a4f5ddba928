// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

// Package channel implements the framing protocol of a pipechan channel.
//
// A Channel sends and receives byte records over a pair of unidirectional
// streams. Each record is transmitted as a frame consisting of a 4-byte
// unsigned length in the machine's native byte order, followed by exactly
// that many bytes of payload:
//
//	[length uint32][payload ... ]
//
// The streams are treated as byte streams with no inherent message
// boundaries. If a stream ends before any byte of a frame has been read, the
// peer is considered to have closed its end and Recv reports an error wrapping
// code.PipeBroken. If it ends partway through a frame, Recv reports an error
// wrapping code.Truncated.
//
// Send and Recv accept a context. When the underlying stream supports read
// and write deadlines (as an *os.File obtained from os.Pipe does), ending the
// context interrupts a blocked call, which then reports an error wrapping
// code.Cancelled. An interrupted frame is not lost: the next call resumes it.
package channel

import (
	"context"
	"io"
)

// A Channel represents the ability to transmit and receive data records.  A
// channel does not interpret the contents of a record, but adds and removes
// framing so that records can be recovered from a byte stream.  The methods
// of a Channel need not be safe for concurrent use.
type Channel interface {
	// Send transmits a record on the channel. A Send that reports
	// cancellation after writing part of the record leaves the remainder to
	// be written by the next Send, so the peer still receives the record.
	Send(context.Context, []byte) error

	// Recv returns the next available record from the channel.
	Recv(context.Context) ([]byte, error)

	// Close shuts down the channel, after which no further records may be
	// sent or received.
	Close() error
}

// A Framing converts a reader and a writer into a Channel with a particular
// message-framing discipline. The channel takes ownership of both streams.
type Framing func(io.ReadCloser, io.WriteCloser) Channel

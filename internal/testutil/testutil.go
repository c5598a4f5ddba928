// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

// Package testutil defines internal support code for writing tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/creachadair/pipechan"
	"github.com/creachadair/pipechan/codec"
	"golang.org/x/sync/errgroup"
)

// Record is a composite value used to check that structured values survive a
// round trip. It is registered by Options.
type Record struct {
	Text string
	N    int
}

// Options returns channel options whose codec registry includes Record,
// using the named codec constructor.
func Options(newCodec func(*codec.Registry) codec.Codec) *pipechan.Options {
	reg := pipechan.NewRegistry()
	codec.MustRegister[Record](reg, "testutil.Record")
	return &pipechan.Options{Codec: newCodec(reg)}
}

// Initialize initializes the given channels concurrently, and fails t if
// any of them reports an error.
func Initialize(t *testing.T, chs ...*pipechan.Channel) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var g errgroup.Group
	for _, c := range chs {
		c := c
		g.Go(func() error { return c.Initialize(ctx) })
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
}

// Pair returns an initialized Acceptor and an initialized Initiator connected
// to it in the same process, using opts for both. The channels are closed
// when t ends.
func Pair(t *testing.T, opts *pipechan.Options) (*pipechan.Acceptor, *pipechan.Channel) {
	t.Helper()

	acc, ini := NewPair(t, opts)
	Initialize(t, acc.Channel, ini)
	return acc, ini
}

// NewPair is as Pair, but does not initialize the channels.
func NewPair(t *testing.T, opts *pipechan.Options) (*pipechan.Acceptor, *pipechan.Channel) {
	t.Helper()

	acc, err := pipechan.NewAcceptor(opts)
	if err != nil {
		t.Fatalf("NewAcceptor failed: %v", err)
	}
	t.Cleanup(func() { acc.Close() })
	in, out := acc.Handles()
	ini, err := pipechan.NewInitiator(in, out, opts)
	if err != nil {
		t.Fatalf("NewInitiator failed: %v", err)
	}
	t.Cleanup(func() { ini.Close() })
	return acc, ini
}

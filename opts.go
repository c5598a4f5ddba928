// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package pipechan

import (
	"github.com/creachadair/pipechan/channel"
	"github.com/creachadair/pipechan/codec"
	"github.com/rs/zerolog"
)

// Options control the behaviour of a channel created by NewChannel,
// NewAcceptor, or NewInitiator. A nil *Options provides sensible defaults.
type Options struct {
	// If not nil, use this codec to encode and decode values. Both endpoints
	// of a channel must use compatible codecs. By default, a channel uses
	// codec.JSON with a registry from NewRegistry.
	//
	// The registry of a custom codec must include ProcessIdentity for the
	// Acceptor/Initiator handshake to work; NewRegistry provides this.
	Codec codec.Codec

	// The maximum size in bytes of an encoded message. A value of zero uses
	// channel.DefaultMaxFrameSize, and a negative value permits any length
	// representable on the wire.
	MaxFrameSize int

	// If not nil, send debug logs to this logger.
	Logger *zerolog.Logger
}

func (o *Options) codec() codec.Codec {
	if o == nil || o.Codec == nil {
		return codec.JSON(NewRegistry())
	}
	return o.Codec
}

func (o *Options) framing() channel.Framing {
	if o == nil {
		return channel.Fixed(0)
	}
	return channel.Fixed(o.MaxFrameSize)
}

func (o *Options) logger() zerolog.Logger {
	if o == nil || o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// NewRegistry returns a codec.Registry containing the default types provided
// by codec.NewRegistry along with ProcessIdentity. Applications that supply
// their own codec should build its registry from this one.
func NewRegistry() *codec.Registry {
	r := codec.NewRegistry()
	codec.MustRegister[ProcessIdentity](r, "pipechan.ProcessIdentity")
	return r
}

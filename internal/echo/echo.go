// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

// Package echo implements a counterpart that returns each value it receives
// on a channel to the sender. It is used by tests and by cmd/pipeecho.
package echo

import (
	"context"
	"errors"

	"github.com/creachadair/pipechan"
	"github.com/rs/zerolog"
)

// Serve receives values from c and sends each one back, until it has echoed
// max values or the peer closes its end. If max <= 0 there is no limit. It
// returns the number of values echoed. The peer closing its end is not an
// error; any other failure is returned.
func Serve(ctx context.Context, c *pipechan.Channel, max int, log zerolog.Logger) (int, error) {
	var n int
	for max <= 0 || n < max {
		v, err := c.Receive(ctx)
		if errors.Is(err, pipechan.ErrPipeBroken) {
			log.Debug().Int("echoed", n).Msg("peer closed")
			return n, nil
		} else if err != nil {
			return n, err
		}
		if err := c.Send(ctx, v); err != nil {
			return n, err
		}
		n++
		log.Debug().Int("n", n).Type("type", v).Msg("echoed value")
	}
	return n, nil
}

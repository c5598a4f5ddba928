// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package channel

import "os"

// Pipe creates a pair of connected channels over OS pipes using the specified
// framing discipline. Sends to client will be received by server, and vice
// versa. Pipe will panic if framing == nil.
func Pipe(framing Framing) (client, server Channel, err error) {
	cr, sw, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	sr, cw, err := os.Pipe()
	if err != nil {
		cr.Close()
		sw.Close()
		return nil, nil, err
	}
	client = framing(cr, cw)
	server = framing(sr, sw)
	return
}

// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package pipechan

import (
	"expvar"
	"sync/atomic"
)

var (
	channelMetrics = new(expvar.Map)

	channelsActive      = new(expvar.Int)
	framesSentCount     = new(expvar.Int)
	framesReceivedCount = new(expvar.Int)
	bytesSentCount      = new(expvar.Int)
	bytesReceivedCount  = new(expvar.Int)
)

func init() {
	channelMetrics.Set("channels_active", channelsActive)
	channelMetrics.Set("frames_sent", framesSentCount)
	channelMetrics.Set("frames_received", framesReceivedCount)
	channelMetrics.Set("bytes_sent", bytesSentCount)
	channelMetrics.Set("bytes_received", bytesReceivedCount)
}

// ChannelMetrics returns a map of exported channel metrics for use with the
// expvar package. This map is shared among all channels created by this
// package. The caller is free to add or remove metrics in the map, but note
// that such changes will affect all channels.
//
// The caller is responsible for publishing the metrics to the exporter via
// expvar.Publish or similar.
func ChannelMetrics() *expvar.Map { return channelMetrics }

// Stats records the traffic on a single channel. Byte counts are of encoded
// payloads and exclude framing.
type Stats struct {
	FramesSent     int64
	FramesReceived int64
	BytesSent      int64
	BytesReceived  int64
	MaxFrameBytes  int64 // the largest payload sent or received
}

type counters struct {
	framesSent, framesRecv atomic.Int64
	bytesSent, bytesRecv   atomic.Int64
	maxFrame               atomic.Int64
}

func newCounters() *counters { return new(counters) }

func (c *counters) sent(n int) {
	c.framesSent.Add(1)
	c.bytesSent.Add(int64(n))
	c.setMax(int64(n))
	framesSentCount.Add(1)
	bytesSentCount.Add(int64(n))
}

func (c *counters) received(n int) {
	c.framesRecv.Add(1)
	c.bytesRecv.Add(int64(n))
	c.setMax(int64(n))
	framesReceivedCount.Add(1)
	bytesReceivedCount.Add(int64(n))
}

func (c *counters) setMax(n int64) {
	for {
		old := c.maxFrame.Load()
		if n <= old || c.maxFrame.CompareAndSwap(old, n) {
			return
		}
	}
}

// Stats returns a snapshot of the traffic counters for c, including the
// handshake.
func (c *Channel) Stats() Stats {
	return Stats{
		FramesSent:     c.stats.framesSent.Load(),
		FramesReceived: c.stats.framesRecv.Load(),
		BytesSent:      c.stats.bytesSent.Load(),
		BytesReceived:  c.stats.bytesRecv.Load(),
		MaxFrameBytes:  c.stats.maxFrame.Load(),
	}
}

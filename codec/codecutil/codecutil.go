// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

// Package codecutil exports helper functions for working with the codecs
// defined by the github.com/creachadair/pipechan/codec package.
package codecutil

import (
	"sort"

	"github.com/creachadair/pipechan/codec"
)

// Codec returns a codec.Codec described by the specified name using the
// registry r, or nil if the name is unknown. The codecs currently understood
// are:
//
//	json -- corresponds to codec.JSON
//	gob  -- corresponds to codec.Gob
func Codec(name string, r *codec.Registry) codec.Codec {
	if f, ok := codecs[name]; ok {
		return f(r)
	}
	return nil
}

// Names returns the known codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var codecs = map[string]func(*codec.Registry) codec.Codec{
	"json": codec.JSON,
	"gob":  codec.Gob,
}

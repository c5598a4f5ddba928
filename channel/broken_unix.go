//go:build unix

package channel

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isBrokenPipe reports whether err reports that the peer of a pipe closed.
func isBrokenPipe(err error) bool { return errors.Is(err, unix.EPIPE) }

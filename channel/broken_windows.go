//go:build windows

package channel

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isBrokenPipe reports whether err reports that the peer of a pipe closed.
func isBrokenPipe(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) ||
		errors.Is(err, windows.ERROR_NO_DATA) ||
		errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED)
}

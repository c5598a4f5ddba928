// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

//go:build !unix

package pipechan

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// openDescriptor reports an error: only handles from an Acceptor in the
// same process are supported on this platform.
func openDescriptor(h, _ string) (*os.File, error) {
	return nil, fmt.Errorf("unknown handle %q", h)
}

// Attach reports an error on this platform, where child processes cannot
// inherit the pipe ends by descriptor number.
func (a *Acceptor) Attach(cmd *exec.Cmd) (in, out string, err error) {
	return "", "", errors.New("attach is not supported on this platform")
}

// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

//go:build unix

package pipechan

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

// openDescriptor returns a file for the inherited descriptor named by h.
// The descriptor is switched to non-blocking mode so that cancellation can
// interrupt blocked I/O.
func openDescriptor(h, name string) (*os.File, error) {
	fd, err := strconv.Atoi(h)
	if err != nil || fd < 0 {
		return nil, fmt.Errorf("invalid handle %q", h)
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return nil, fmt.Errorf("handle %q: %w", h, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("handle %q: %w", h, err)
	}
	return os.NewFile(uintptr(fd), name), nil
}

// Attach arranges for cmd to inherit the Initiator's ends of the pipes, and
// returns the handle strings the child process should pass to NewInitiator.
// Attach must be called before cmd is started and before a is initialized.
func (a *Acceptor) Attach(cmd *exec.Cmd) (in, out string, err error) {
	peer := a.hs.peer
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.in == nil || peer.out == nil {
		return "", "", errors.New("pipe ends have been released")
	}
	base := 3 + len(cmd.ExtraFiles) // descriptors 0, 1, 2 are stdio
	cmd.ExtraFiles = append(cmd.ExtraFiles, peer.in, peer.out)
	return strconv.Itoa(base), strconv.Itoa(base + 1), nil
}

// Copyright (C) 2017 Michael J. Fromberger. All Rights Reserved.

package pipechan

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// ProcessIdentity is the handshake record exchanged when an Acceptor and
// Initiator are initialized. Its value is the process ID of the Initiator.
type ProcessIdentity int

func self() ProcessIdentity { return ProcessIdentity(os.Getpid()) }

// An Acceptor is the endpoint of a channel that allocates the pipes. Its
// Handles (or Attach, for a child process) describe the other ends, from
// which the counterpart builds an Initiator with NewInitiator.
//
// During Initialize, an Acceptor receives the identity of the Initiator's
// process. If the Initiator runs in a different process, the Acceptor closes
// its own copies of the Initiator's pipe ends, so that when the Initiator
// exits, its departure is observed as ErrPipeBroken.
type Acceptor struct {
	*Channel

	hs *acceptState
}

// acceptState is the handshake state of an Acceptor. It is referenced by the
// channel's hooks, and so must not refer to the channel.
type acceptState struct {
	peer    *peerFiles
	in, out string

	mu     sync.Mutex
	peerID ProcessIdentity
}

// peerFiles holds the process-local copies of the Initiator's pipe ends.
type peerFiles struct {
	mu  sync.Mutex
	in  *os.File // the Initiator reads from this
	out *os.File // the Initiator writes to this
}

// NewAcceptor allocates a new pair of pipes and returns an uninitialized
// Acceptor for one end of them.
func NewAcceptor(opts *Options) (*Acceptor, error) {
	ar, iw, err := os.Pipe() // Initiator → Acceptor
	if err != nil {
		return nil, fmt.Errorf("creating pipe: %w", err)
	}
	ir, aw, err := os.Pipe() // Acceptor → Initiator
	if err != nil {
		ar.Close()
		iw.Close()
		return nil, fmt.Errorf("creating pipe: %w", err)
	}
	fail := func(err error) (*Acceptor, error) {
		for _, f := range []*os.File{ar, iw, ir, aw} {
			f.Close()
		}
		return nil, err
	}
	in, err := handles.add(ir)
	if err != nil {
		return fail(err)
	}
	out, err := handles.add(iw)
	if err != nil {
		handles.remove(in)
		return fail(err)
	}

	peer := &peerFiles{in: ir, out: iw}
	hs := &acceptState{peer: peer, in: in, out: out}
	a := &Acceptor{Channel: NewChannel(ar, aw, opts), hs: hs}
	a.log = a.log.With().Str("role", "acceptor").Logger()
	a.hello = hs.handshake
	a.release = func() { peer.close(in, out) }
	return a, nil
}

// Handles returns the handle strings for the Initiator's ends of the pipes,
// for use with NewInitiator in the same process.
func (a *Acceptor) Handles() (in, out string) { return a.hs.in, a.hs.out }

// PeerIdentity reports the process identity received from the Initiator
// during Initialize, or 0 if the handshake has not completed.
func (a *Acceptor) PeerIdentity() ProcessIdentity {
	a.hs.mu.Lock()
	defer a.hs.mu.Unlock()
	return a.hs.peerID
}

func (s *acceptState) handshake(ctx context.Context, c *Channel) error {
	bits, err := c.recv(ctx, false)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	v, err := c.codec.Decode(bits)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	id, err := as[ProcessIdentity](v)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	if own := self(); id != own {
		s.peer.close(s.in, s.out)
		c.log.Debug().Int("peer", int(id)).Msg("peer is in another process; released local pipe ends")
	} else {
		c.log.Debug().Msg("peer is in this process")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerID = id
	return nil
}

// close closes the local copies of the Initiator's pipe ends, unless they
// were claimed by an Initiator in this process.
func (p *peerFiles) close(in, out string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f := handles.claim(in); f != nil {
		f.Close()
	}
	if f := handles.claim(out); f != nil {
		f.Close()
	}
	p.in, p.out = nil, nil
}

// NewInitiator returns an uninitialized channel connected to the pipes
// described by the handle strings in and out, as reported by an Acceptor.
// Handles from an Acceptor in the same process transfer ownership of the
// Acceptor's pipe ends to the new channel. Otherwise, on Unix systems, each
// handle is the number of an inherited file descriptor (see Acceptor.Attach).
//
// Initialize on the resulting channel sends the identity of the current
// process to the Acceptor.
func NewInitiator(in, out string, opts *Options) (*Channel, error) {
	r, err := openHandle(in, "pipechan-in")
	if err != nil {
		return nil, err
	}
	w, err := openHandle(out, "pipechan-out")
	if err != nil {
		r.Close()
		return nil, err
	}
	c := NewChannel(r, w, opts)
	c.log = c.log.With().Str("role", "initiator").Logger()
	c.hello = func(ctx context.Context, c *Channel) error {
		if err := c.send(ctx, self()); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
		return nil
	}
	return c, nil
}

// handles is the table of pipe ends created by Acceptors in this process and
// not yet claimed by an Initiator or released.
var handles = &handleTable{files: make(map[string]*os.File)}

type handleTable struct {
	mu    sync.Mutex
	files map[string]*os.File
}

func (t *handleTable) add(f *os.File) (string, error) {
	h, err := descriptor(f)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[h] = f
	return h, nil
}

// claim removes and returns the file for h, or nil if there is none.
func (t *handleTable) claim(h string) *os.File {
	t.mu.Lock()
	defer t.mu.Unlock()
	f := t.files[h]
	delete(t.files, h)
	return f
}

func (t *handleTable) remove(h string) { t.claim(h) }

func openHandle(h, name string) (*os.File, error) {
	if f := handles.claim(h); f != nil {
		return f, nil
	}
	return openDescriptor(h, name)
}

// descriptor returns the handle string for f, its descriptor number, without
// changing the blocking mode of f.
func descriptor(f *os.File) (string, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return "", err
	}
	var h string
	if err := rc.Control(func(fd uintptr) { h = fmt.Sprint(fd) }); err != nil {
		return "", err
	}
	return h, nil
}

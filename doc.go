/*
Package pipechan implements a bidirectional message channel between two
endpoints, built on a pair of unidirectional pipes.

Channels

A *Channel sends values to its peer and receives the values its peer sends, in
order. Each value is encoded by a codec.Codec and carried in one frame of the
underlying streams (see the channel package for the wire format). The decoded
value has the same dynamic type the sender sent, provided both ends register
that type under the same name:

   reg := pipechan.NewRegistry()
   codec.MustRegister[Point](reg, "geo.Point")
   opts := &pipechan.Options{Codec: codec.JSON(reg)}

Acceptors and Initiators

One endpoint, the Acceptor, allocates the pipes:

   acc, err := pipechan.NewAcceptor(opts)
   ...
   in, out := acc.Handles()

The handle strings describe the other ends of the pipes. The counterpart uses
them to construct the matching endpoint, the Initiator:

   ini, err := pipechan.NewInitiator(in, out, opts)

To start a counterpart in a child process, use Attach instead of Handles
(Unix only; elsewhere Attach reports an error). The child inherits its ends
of the pipes, and receives handle strings for them by whatever means the
parent chooses, such as command-line flags:

   cmd := exec.Command("worker")
   in, out, err := acc.Attach(cmd)
   cmd.Args = append(cmd.Args, "-in", in, "-out", out)
   err = cmd.Start()

Both endpoints must be initialized before use. Initialization performs a
handshake in which the Initiator reports its process identity. An Acceptor
whose peer is in another process releases its own copies of the peer's pipe
ends, so that when the peer exits the departure is observed as ErrPipeBroken
on the next Send or Receive:

   if err := acc.Initialize(ctx); err != nil {
      log.Fatalf("Initialize: %v", err)
   }

Sending and Receiving

Call Send to transmit a value, and Receive to wait for the next one:

   if err := acc.Send(ctx, Point{X: 1, Y: 2}); err != nil {
      ...
   }
   v, err := acc.Receive(ctx) // v has dynamic type Point

The generic Receive function checks the type of the value:

   p, err := pipechan.Receive[Point](ctx, acc.Channel)

A mismatch is reported as ErrTypeMismatch. If ctx ends while a Send or
Receive is blocked, the call reports ErrCancelled and the channel remains
usable: a frame partly read or written is completed by the next call.

Receive Events

As an alternative to calling Receive, a channel can deliver values as they
arrive to functions registered by OnReceive:

   acc.OnReceive(func(v any) { fmt.Println("received", v) })
   acc.OnReceiveError(func(err error) { log.Printf("receive: %v", err) })
   if err := acc.SetReceiveEvents(true); err != nil {
      ...
   }

While receive events are enabled, Receive reports ErrInvalidState. Disabling
receive events, or closing the channel, stops delivery.

Errors

Errors reported by this package satisfy errors.Is against the sentinel values
such as ErrPipeBroken and ErrCancelled. The code package classifies errors by
code.Code, via code.FromError.
*/
package pipechan

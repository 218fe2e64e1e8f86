/*
Package channel implements the typed event channels and partitioning
strategies of spec section 4.1: Forward, Broadcast, KeyBy, RoundRobin
and Shuffle, dispatching over Local (in-process mailbox), Remote
(network), and Port (direct typed coupling) channel variants.
*/
package channel

import (
	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/event"
	"github.com/cuemby/arcflow/pkg/metrics"
)

// Kind discriminates the three channel variants a Strategy can target.
type Kind int

const (
	Local Kind = iota
	Remote
	Port
)

// RemoteSender delivers an event to a network peer. It is implemented
// by the transport in pkg/remote; defined here so channel does not
// import a networking package.
type RemoteSender[T any] interface {
	Send(ev event.Event[T]) error
}

// PortFunc couples two nodes directly in-process: it is the receiving
// node's handler, invoked synchronously from within the sending node's
// handler per spec section 9's unsafe-pointer redesign note — the
// coupling is an explicit typed function value, not a raw pointer
// escaping a double-borrow.
type PortFunc[T any] func(ev event.Event[T]) error

// Channel is one outbound destination a Strategy can route an event
// to. Exactly one of Mailbox, Remote or Deliver is meaningful,
// selected by Kind.
type Channel[T any] struct {
	ID   string
	Kind Kind

	Mailbox chan event.Event[T] // Local
	Remote  RemoteSender[T]     // Remote
	Deliver PortFunc[T]         // Port
}

// NewLocal targets an in-process mailbox channel.
func NewLocal[T any](id string, mailbox chan event.Event[T]) Channel[T] {
	return Channel[T]{ID: id, Kind: Local, Mailbox: mailbox}
}

// NewRemote targets a network peer reachable through sender.
func NewRemote[T any](id string, sender RemoteSender[T]) Channel[T] {
	return Channel[T]{ID: id, Kind: Remote, Remote: sender}
}

// NewPort targets another node's handler directly.
func NewPort[T any](id string, deliver PortFunc[T]) Channel[T] {
	return Channel[T]{ID: id, Kind: Port, Deliver: deliver}
}

// send dispatches ev to ch according to its Kind. A Remote delivery
// failure is wrapped as a SerializationError: per spec section 4.1,
// it is non-fatal to the calling strategy.
func send[T any](ch Channel[T], ev event.Event[T]) error {
	switch ch.Kind {
	case Local:
		ch.Mailbox <- ev
		return nil
	case Remote:
		if err := ch.Remote.Send(ev); err != nil {
			metrics.ChannelDeliveryErrors.WithLabelValues(ch.ID, "remote").Inc()
			return errs.Wrap(errs.SerializationError, "channel.send", err)
		}
		return nil
	case Port:
		return ch.Deliver(ev)
	default:
		return errs.New(errs.BadTaskError, "channel.send: unknown channel kind")
	}
}

// Package mino provides an abstraction for an application layer. It offers a
// minimalistic overlay network to communicate between the participants of a
// protocol.
//
// The messages sent through the overlay are serialized with the serde package
// so that the implementation can decide the wire format.
package mino

import (
	"context"
	"encoding"

	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Address is a representation of a node's location.
type Address interface {
	encoding.TextMarshaler

	// Equal returns true when both addresses are similar.
	Equal(other Address) bool

	// String returns a string representation of the address.
	String() string
}

// AddressFactory is the factory to deserialize addresses.
type AddressFactory interface {
	// FromText returns the address of the text.
	FromText(text []byte) Address
}

// AddressIterator is an iterator over the list of addresses of a membership.
type AddressIterator interface {
	// Seek moves the iterator to a specific index.
	Seek(int)

	// HasNext returns true if an address is available, false if the iterator
	// is exhausted.
	HasNext() bool

	// GetNext returns the next address in case HasNext returns true, otherwise
	// no assumption can be done.
	GetNext() Address
}

// Players is an interface to represent a set of nodes participating in a
// message passing protocol.
type Players interface {
	// Take returns a subset of the players according to the filters.
	Take(...FilterUpdater) Players

	// AddressIterator returns an iterator that prevents changes of the
	// underlying array and saves memory by iterating over the same array.
	AddressIterator() AddressIterator

	// Len returns the length of the set of players.
	Len() int
}

// Request is a wrapper around the context of a message received from a player
// and that needs to be processed.
type Request struct {
	// Address is the address of the sender of the request.
	Address Address

	// Message is the message of the request.
	Message serde.Message
}

// Response is the payload returned by a request to a distant peer.
type Response interface {
	// GetFrom returns the address the response originates from.
	GetFrom() Address

	// GetMessageOrError returns the message, or the error if something wrong
	// happened.
	GetMessageOrError() (serde.Message, error)
}

// Sender is an interface to provide primitives to send messages to recipients.
type Sender interface {
	// Send sends the message to all the addresses. It returns a channel that
	// will be populated with errors coming from the network layer if the
	// message cannot be delivered.
	Send(msg serde.Message, addrs ...Address) <-chan error
}

// Receiver is an interface to provide primitives to receive messages from
// recipients.
type Receiver interface {
	// Recv waits for a message to arrive, or for the context to be done. It
	// returns the address of the sender and the message, or the error that
	// ended the stream.
	Recv(ctx context.Context) (Address, serde.Message, error)
}

// RPC is a representation of a remote procedure call that can call a single
// distant procedure or multiple.
type RPC interface {
	// Call is a basic request to one or multiple distant peers. The method
	// returns a channel that will be populated by the responses.
	Call(ctx context.Context, req serde.Message, players Players) (<-chan Response, error)

	// Stream is a persistent request that will be closed only when the
	// orchestrator is done or an error occurred.
	Stream(ctx context.Context, players Players) (Sender, Receiver, error)
}

// Handler is the interface to implement to create a public endpoint.
type Handler interface {
	// Process handles a single request by producing the response according to
	// the request message.
	Process(req Request) (resp serde.Message, err error)

	// Stream is a handler for a stream request. It will open a stream with the
	// participants.
	Stream(out Sender, in Receiver) error
}

// UnsupportedHandler implements the Handler interface with default behaviour
// so that an implementation can focus on its needs.
type UnsupportedHandler struct{}

// Process implements mino.Handler. It throws an error in any case.
func (h UnsupportedHandler) Process(req Request) (serde.Message, error) {
	return nil, xerrors.New("rpc is not supported")
}

// Stream implements mino.Handler. It throws an error in any case.
func (h UnsupportedHandler) Stream(out Sender, in Receiver) error {
	return xerrors.New("stream is not supported")
}

// Mino is an abstraction of an overlay allowing the creation of namespaces for
// internal protocols and to associate handlers to it.
type Mino interface {
	// GetAddressFactory returns the address factory of the overlay.
	GetAddressFactory() AddressFactory

	// GetAddress returns the address that other participants should use to
	// contact this instance.
	GetAddress() Address

	// WithSegment returns a new mino instance that will have its URI path
	// extended with the provided segment.
	WithSegment(segment string) Mino

	// CreateRPC creates an RPC that can send to and receive from a unique URI
	// which is computed with URI = (segment || name). The handler will be
	// called for any incoming message of this RPC, deserialized with the
	// factory.
	CreateRPC(name string, h Handler, f serde.Factory) (RPC, error)
}

// MustCreateRPC creates the RPC and expects the creation to be successful,
// otherwise it panics.
func MustCreateRPC(m Mino, name string, h Handler, f serde.Factory) RPC {
	rpc, err := m.CreateRPC(name, h, f)
	if err != nil {
		panic(xerrors.Errorf("couldn't create rpc: %v", err))
	}

	return rpc
}

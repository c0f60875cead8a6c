package minoch

import (
	"context"
	"io"
	"sync"

	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Envelope is the wrapper to send messages through streams.
type Envelope struct {
	to      []mino.Address
	from    address
	message []byte
}

// RPC implements a remote procedure call that works only in the local
// process.
//
// - implements mino.RPC
type RPC struct {
	manager *Manager
	addr    address
	path    string
	h       mino.Handler
	context serde.Context
	factory serde.Factory
}

// Call implements mino.RPC. It sends the message to all the participants and
// gathers their replies. The context in the scope of channel communication as
// there is no blocking I/O.
func (c *RPC) Call(ctx context.Context, req serde.Message,
	players mino.Players) (<-chan mino.Response, error) {

	data, err := req.Serialize(c.context)
	if err != nil {
		return nil, xerrors.Errorf("couldn't serialize: %v", err)
	}

	out := make(chan mino.Response, players.Len())

	wg := sync.WaitGroup{}
	wg.Add(players.Len())

	iter := players.AddressIterator()
	for iter.HasNext() {
		addr := iter.GetNext()

		go func(addr mino.Address) {
			defer wg.Done()

			peer, err := c.manager.get(addr.(address))
			if err != nil {
				out <- mino.NewResponseWithError(addr,
					xerrors.Errorf("couldn't find peer: %v", err))
				return
			}

			peer.Lock()
			rpc, found := peer.rpcs[c.path]
			peer.Unlock()

			if !found {
				out <- mino.NewResponseWithError(addr,
					xerrors.Errorf("unknown rpc '%s'", c.path))
				return
			}

			msg, err := rpc.factory.Deserialize(rpc.context, data)
			if err != nil {
				out <- mino.NewResponseWithError(addr,
					xerrors.Errorf("couldn't deserialize: %v", err))
				return
			}

			resp, err := rpc.h.Process(mino.Request{Address: c.addr, Message: msg})
			if err != nil {
				out <- mino.NewResponseWithError(addr,
					xerrors.Errorf("couldn't process request: %v", err))
				return
			}

			out <- mino.NewResponse(addr, resp)
		}(addr)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

// Stream implements mino.RPC. It opens a stream with the participants and
// returns the sender and the receiver of the orchestrator. The caller is
// responsible for cancelling the context to close the stream.
func (c *RPC) Stream(ctx context.Context, players mino.Players) (mino.Sender, mino.Receiver, error) {
	in := make(chan Envelope, 100)
	out := make(chan Envelope, 100)
	errs := make(chan error, 1)

	outs := make(map[string]receiver)

	iter := players.AddressIterator()
	for iter.HasNext() {
		addr := iter.GetNext()

		peer, err := c.manager.get(addr.(address))
		if err != nil {
			return nil, nil, xerrors.Errorf("couldn't find peer: %v", err)
		}

		peer.Lock()
		rpc, found := peer.rpcs[c.path]
		peer.Unlock()

		if !found {
			return nil, nil, xerrors.Errorf("unknown rpc '%s'", c.path)
		}

		ch := make(chan Envelope, 100)
		outs[addr.String()] = receiver{
			out:     ch,
			context: rpc.context,
			factory: rpc.factory,
		}

		go func(r receiver, rpc *RPC, peer *Minoch) {
			s := sender{
				addr:    address{id: peer.identifier},
				in:      in,
				context: rpc.context,
			}

			err := rpc.h.Stream(s, r)
			if err != nil {
				errs <- xerrors.Errorf("couldn't process stream: %v", err)
			}
		}(outs[addr.String()], rpc, peer)
	}

	orchAddr := c.addr
	orchAddr.orchestrator = true

	orchSender := sender{
		addr:    orchAddr,
		in:      in,
		context: c.context,
	}

	orchRecv := receiver{
		out:     out,
		errs:    errs,
		context: c.context,
		factory: c.factory,
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				// closes the orchestrator..
				close(out)
				// ..and closes the participants.
				for _, r := range outs {
					close(r.out)
				}
				return
			case env := <-in:
				for _, to := range env.to {
					if addr, ok := to.(address); ok && addr.orchestrator {
						orchRecv.out <- env
					} else {
						r, found := outs[to.String()]
						if found {
							r.out <- env
						}
					}
				}
			}
		}
	}()

	return orchSender, orchRecv, nil
}

// sender is the implementation of a sender for a stream.
//
// - implements mino.Sender
type sender struct {
	addr    address
	in      chan Envelope
	context serde.Context
}

// Send implements mino.Sender. It serializes the message once and dispatches
// an envelope to the stream router.
func (s sender) Send(msg serde.Message, addrs ...mino.Address) <-chan error {
	errs := make(chan error, max(1, len(addrs)))

	data, err := msg.Serialize(s.context)
	if err != nil {
		errs <- xerrors.Errorf("couldn't serialize message: %v", err)
		close(errs)
		return errs
	}

	go func() {
		defer func() {
			// The stream is closed when the context of the orchestrator is
			// done, in which case sending to the router would panic.
			if recover() != nil {
				errs <- xerrors.New("stream is closed")
			}

			close(errs)
		}()

		s.in <- Envelope{
			from:    s.addr,
			to:      addrs,
			message: data,
		}
	}()

	return errs
}

// receiver is the implementation of a receiver for a stream.
//
// - implements mino.Receiver
type receiver struct {
	out     chan Envelope
	errs    chan error
	context serde.Context
	factory serde.Factory
}

// Recv implements mino.Receiver. It waits for an envelope to arrive and
// returns the deserialized message, or the error that closed the stream.
func (r receiver) Recv(ctx context.Context) (mino.Address, serde.Message, error) {
	select {
	case env, ok := <-r.out:
		if !ok {
			return nil, nil, io.EOF
		}

		msg, err := r.factory.Deserialize(r.context, env.message)
		if err != nil {
			return nil, nil, xerrors.Errorf("couldn't deserialize: %v", err)
		}

		return env.from, msg, nil
	case err := <-r.errs:
		return nil, nil, err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}

	return b
}

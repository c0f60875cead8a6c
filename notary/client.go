package notary

import (
	"context"

	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"golang.org/x/xerrors"
)

// Client requests notarizations from a distant notary.
type Client struct {
	rpc  mino.RPC
	addr mino.Address
}

// NewClient creates a client that will contact the notary at the address
// through the overlay.
func NewClient(m mino.Mino, addr mino.Address) (Client, error) {
	rpc, err := m.CreateRPC(RPCName, mino.UnsupportedHandler{}, MessageFactory{})
	if err != nil {
		return Client{}, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return Client{rpc: rpc, addr: addr}, nil
}

// GetAddress returns the address of the notary.
func (c Client) GetAddress() mino.Address {
	return c.addr
}

// Notarize sends the transaction to the notary and returns its signature. It
// returns a ConflictError when the notary refuses because an input is already
// consumed by a different transaction.
func (c Client) Notarize(ctx context.Context, stx tx.SignedTransaction) (tx.DigitalSignature, error) {
	resps, err := c.rpc.Call(ctx, NewRequest(stx), mino.NewAddresses(c.addr))
	if err != nil {
		return tx.DigitalSignature{}, xerrors.Errorf("couldn't call notary: %v", err)
	}

	select {
	case resp, more := <-resps:
		if !more {
			return tx.DigitalSignature{}, xerrors.New("notary closed the connection")
		}

		msg, err := resp.GetMessageOrError()
		if err != nil {
			return tx.DigitalSignature{}, xerrors.Errorf("notary refused the transaction: %v", err)
		}

		switch answer := msg.(type) {
		case Signed:
			return answer.GetSignature(), nil
		case Conflict:
			return tx.DigitalSignature{}, ConflictError{
				Ref:  answer.GetRef(),
				Hash: answer.GetHash(),
			}
		default:
			return tx.DigitalSignature{}, xerrors.Errorf("invalid answer of type '%T'", msg)
		}
	case <-ctx.Done():
		return tx.DigitalSignature{}, ctx.Err()
	}
}

package trade

import (
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger/store"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Observer records the settled trades copied by a seller, like a regulator
// keeping a view of the market would.
//
// - implements mino.Handler
type Observer struct {
	mino.UnsupportedHandler

	store       store.Transactions
	hashFactory crypto.HashFactory
}

// NewObserver creates an observer backed by the store and registers it as the
// handler of the observation endpoint.
func NewObserver(m mino.Mino, txs store.Transactions, f crypto.HashFactory) (*Observer, error) {
	observer := &Observer{
		store:       txs,
		hashFactory: f,
	}

	_, err := m.CreateRPC(ObserveRPCName, observer, MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return observer, nil
}

// Process implements mino.Handler. It verifies the copy and records it.
func (o *Observer) Process(req mino.Request) (serde.Message, error) {
	in, ok := req.Message.(Recorded)
	if !ok {
		return nil, xerrors.Errorf("invalid request of type '%T'", req.Message)
	}

	stx := in.GetTransaction()

	err := stx.VerifyFullySigned(o.hashFactory)
	if err != nil {
		return nil, xerrors.Errorf("copy is not fully signed: %v", err)
	}

	err = o.store.Put(stx)
	if err != nil {
		return nil, xerrors.Errorf("couldn't record copy: %v", err)
	}

	return Ack{}, nil
}

package dealflow

import (
	"context"

	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Instigator runs the primary side of deal creations. It proposes agreements
// to counterparties and verifies that the assembled transaction creates
// exactly the agreement proposed.
type Instigator struct {
	cfg  protocol.Config
	rpc  mino.RPC
	book *Book
}

// NewInstigator creates an instigator recording its deals in the book.
func NewInstigator(m mino.Mino, cfg protocol.Config, book *Book) (*Instigator, error) {
	rpc, err := m.CreateRPC(RPCName, mino.UnsupportedHandler{}, protocol.MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return &Instigator{
		cfg:  cfg,
		rpc:  rpc,
		book: book,
	}, nil
}

// Propose offers the deal to the peer and runs the session until the
// agreement is recorded. It returns the fully signed transaction.
func (i *Instigator) Propose(ctx context.Context, d deal.State, notary ledger.Party,
	peer mino.Address) (tx.SignedTransaction, error) {

	hooks := instigatorHooks{
		instigator: i,
		deal:       d,
		notary:     notary,
	}

	primary := protocol.NewPrimary(i.cfg, hooks)

	return primary.Run(ctx, i.rpc, peer)
}

// instigatorHooks verify the creation of one deal.
//
// - implements protocol.PrimaryHooks
type instigatorHooks struct {
	instigator *Instigator
	deal       deal.State
	notary     ledger.Party
}

// Terms implements protocol.PrimaryHooks.
func (h instigatorHooks) Terms() (serde.Message, error) {
	return NewOffer(h.deal, h.notary), nil
}

// CheckProposal implements protocol.PrimaryHooks. It verifies that the
// proposal creates the offered agreement and nothing else.
func (h instigatorHooks) CheckProposal(stx tx.SignedTransaction, inputs []ledger.StateAndRef) error {
	f := h.instigator.cfg.HashFactory

	expected, err := stateDigest(f, h.deal)
	if err != nil {
		return xerrors.Errorf("couldn't digest offer: %v", err)
	}

	for _, output := range stx.GetWire().GetOutputs() {
		d, ok := output.State.(deal.State)
		if !ok {
			continue
		}

		digest, err := stateDigest(f, d)
		if err != nil {
			return xerrors.Errorf("couldn't digest proposal: %v", err)
		}

		if string(digest) == string(expected) {
			return nil
		}
	}

	return xerrors.New("proposal does not create the offered deal")
}

// Finalize implements protocol.PrimaryHooks. It records the new deal in the
// book.
func (h instigatorHooks) Finalize(ctx context.Context, stx tx.SignedTransaction) error {
	return h.instigator.book.Update(stx)
}

// stateDigest hashes the fingerprint of the state.
func stateDigest(f crypto.HashFactory, state ledger.ContractState) ([]byte, error) {
	h := f.New()

	err := state.Fingerprint(h)
	if err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

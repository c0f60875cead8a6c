package dealflow

import (
	"context"
	"time"

	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// proposalWindow is the validity window put on the assembled transactions.
const proposalWindow = 30 * time.Second

// Acceptor runs the secondary side of deal creations. It assembles and
// co-signs the agreements it is offered and is a party of.
type Acceptor struct {
	cfg       protocol.Config
	book      *Book
	secondary *protocol.Secondary
}

// NewAcceptor creates an acceptor and registers it as the handler of the deal
// endpoint.
func NewAcceptor(m mino.Mino, cfg protocol.Config, book *Book) (*Acceptor, error) {
	acceptor := &Acceptor{
		cfg:  cfg,
		book: book,
	}

	acceptor.secondary = protocol.NewSecondary(cfg, acceptorHooks{acceptor: acceptor})

	_, err := m.CreateRPC(RPCName, acceptor.secondary, protocol.MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return acceptor, nil
}

// GetProgress returns the progress tracker of the sessions of the acceptor.
func (a *Acceptor) GetProgress() *protocol.Progress {
	return a.secondary.GetProgress()
}

// acceptorHooks assemble the creation of one deal.
//
// - implements protocol.SecondaryHooks
type acceptorHooks struct {
	acceptor *Acceptor
}

// ValidateTerms implements protocol.SecondaryHooks. It refuses an offer this
// party is not a participant of.
func (h acceptorHooks) ValidateTerms(sender ledger.Party, payload serde.Message) error {
	offer, ok := payload.(Offer)
	if !ok {
		return xerrors.Errorf("invalid payload of type '%T'", payload)
	}

	identity := h.acceptor.cfg.Identity

	member := false
	senderIsParty := false
	for _, party := range offer.GetDeal().GetParties() {
		if party.Equal(identity) {
			member = true
		}

		if party.Equal(sender) {
			senderIsParty = true
		}
	}

	if !member {
		return protocol.RejectedTermsError{Reason: "not a party of the deal"}
	}

	if !senderIsParty {
		return protocol.RejectedTermsError{Reason: "offer from a stranger"}
	}

	return nil
}

// Assemble implements protocol.SecondaryHooks. It builds the transaction
// creating the agreement and signs it with the key of this party.
func (h acceptorHooks) Assemble(ctx context.Context, peer mino.Address,
	sender ledger.Party, payload serde.Message) (tx.SignedTransaction, error) {

	var stx tx.SignedTransaction

	offer, ok := payload.(Offer)
	if !ok {
		return stx, xerrors.Errorf("invalid payload of type '%T'", payload)
	}

	cfg := h.acceptor.cfg

	builder := tx.NewBuilder(cfg.HashFactory)

	err := builder.SetTimeWindow(time.Now(), proposalWindow)
	if err != nil {
		return stx, xerrors.Errorf("couldn't set window: %v", err)
	}

	err = offer.GetDeal().GenerateAgreement(builder, offer.GetNotary())
	if err != nil {
		return stx, xerrors.Errorf("couldn't generate agreement: %v", err)
	}

	signer, err := cfg.Keys.SignerFor(cfg.Identity.GetPublicKey())
	if err != nil {
		return stx, xerrors.Errorf("couldn't find signer: %v", err)
	}

	err = builder.SignWith(signer)
	if err != nil {
		return stx, xerrors.Errorf("couldn't sign: %v", err)
	}

	stx, err = builder.ToSignedTransaction(false)
	if err != nil {
		return stx, xerrors.Errorf("couldn't build transaction: %v", err)
	}

	return stx, nil
}

// Finalize implements protocol.SecondaryHooks. It records the new deal in the
// book.
func (h acceptorHooks) Finalize(ctx context.Context, stx tx.SignedTransaction) error {
	return h.acceptor.book.Update(stx)
}

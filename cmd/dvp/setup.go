package main

import (
	"context"
	"time"

	"go.dedis.ch/dvp"
	"go.dedis.ch/dvp/contracts/asset"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/keychain"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/store"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/ledger/validation"
	"go.dedis.ch/dvp/mino/minoch"
	"go.dedis.ch/dvp/notary"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/protocol/resolver"
	"golang.org/x/xerrors"
)

// node is one participant of the demonstration, with its overlay instance,
// identity, keys, store and wallet.
type node struct {
	mino     *minoch.Minoch
	party    ledger.Party
	keys     *keychain.InMemory
	store    *store.InMemory
	wallet   *cash.Wallet
	resolver *resolver.Resolver
	cfg      protocol.Config
}

// newValidation returns the engine validating the three contracts of the
// demonstration.
func newValidation() validation.Engine {
	engine := validation.NewEngine()
	engine.Register(cash.Spend{}, cash.NewContract())
	engine.Register(cash.Issue{}, cash.NewContract())
	engine.Register(asset.Move{}, asset.NewContract())
	engine.Register(asset.Issue{}, asset.NewContract())
	engine.Register(deal.Agree{}, deal.NewContract())
	engine.Register(deal.Fixing{}, deal.NewContract())

	return engine
}

// newNode creates a participant on the overlay of the manager. The notary
// client is set by the caller once the node can reach it.
func newNode(mgr *minoch.Manager, name string, f crypto.HashFactory) (*node, error) {

	m, err := minoch.NewMinoch(mgr, name)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create overlay: %v", err)
	}

	keys := keychain.NewInMemory()

	pubkey, err := keys.Import(schnorr.NewSigner())
	if err != nil {
		return nil, xerrors.Errorf("couldn't import signer: %v", err)
	}

	txs := store.NewInMemory(f)

	res, err := resolver.NewResolver(m, txs, f)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create resolver: %v", err)
	}

	party := ledger.NewParty(name, pubkey)

	n := &node{
		mino:     m,
		party:    party,
		keys:     keys,
		store:    txs,
		wallet:   cash.NewWallet(f),
		resolver: res,
		cfg: protocol.Config{
			Identity:    party,
			Keys:        keys,
			Store:       txs,
			Resolver:    res,
			Validation:  newValidation(),
			HashFactory: f,
			Logger:      dvp.Logger.With().Str("node", name).Logger(),
		},
	}

	return n, nil
}

// notaryNode creates the notary of the demonstration and returns a client
// factory for the participants.
func notaryNode(mgr *minoch.Manager, f crypto.HashFactory) (ledger.Party, func(*node) (notary.Client, error), error) {
	m, err := minoch.NewMinoch(mgr, "notary")
	if err != nil {
		return ledger.Party{}, nil, xerrors.Errorf("couldn't create overlay: %v", err)
	}

	signer := schnorr.NewSigner()
	party := ledger.NewParty("notary", signer.GetPublicKey())

	srv := notary.NewService(party, signer, f, notary.NewInMemoryIndex())

	_, err = m.CreateRPC(notary.RPCName, srv, notary.MessageFactory{})
	if err != nil {
		return ledger.Party{}, nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	clientFor := func(n *node) (notary.Client, error) {
		return notary.NewClient(n.mino, m.GetAddress())
	}

	return party, clientFor, nil
}

// issue records an issuance transaction in the store of the node, notarized
// so that the backchain verifies.
func issue(ctx context.Context, n *node, not notary.Client, notaryParty ledger.Party,
	fill func(*tx.Builder, crypto.PublicKey) error) (tx.SignedTransaction, error) {

	var stx tx.SignedTransaction

	issuer, err := n.keys.FreshKey()
	if err != nil {
		return stx, xerrors.Errorf("couldn't make issuer key: %v", err)
	}

	builder := tx.NewBuilder(n.cfg.HashFactory)

	err = builder.SetTimeWindow(time.Now(), time.Minute)
	if err != nil {
		return stx, xerrors.Errorf("couldn't set window: %v", err)
	}

	err = fill(builder, issuer)
	if err != nil {
		return stx, xerrors.Errorf("couldn't fill builder: %v", err)
	}

	signer, err := n.keys.SignerFor(issuer)
	if err != nil {
		return stx, xerrors.Errorf("couldn't find signer: %v", err)
	}

	err = builder.SignWith(signer)
	if err != nil {
		return stx, xerrors.Errorf("couldn't sign: %v", err)
	}

	stx, err = builder.ToSignedTransaction(true)
	if err != nil {
		return stx, xerrors.Errorf("couldn't build transaction: %v", err)
	}

	sig, err := not.Notarize(ctx, stx)
	if err != nil {
		return stx, xerrors.Errorf("couldn't notarize: %v", err)
	}

	stx, err = stx.WithSignature(sig)
	if err != nil {
		return stx, xerrors.Errorf("couldn't add signature: %v", err)
	}

	err = n.store.Put(stx)
	if err != nil {
		return stx, xerrors.Errorf("couldn't record: %v", err)
	}

	return stx, nil
}

// refsOf returns the state references of the outputs of the transaction.
func refsOf(stx tx.SignedTransaction, f crypto.HashFactory) ([]ledger.StateAndRef, error) {
	hash, err := stx.Hash(f)
	if err != nil {
		return nil, xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	outputs := stx.GetWire().GetOutputs()

	refs := make([]ledger.StateAndRef, len(outputs))
	for i, output := range outputs {
		refs[i] = ledger.StateAndRef{
			Ref:    ledger.NewStateRef(hash, uint32(i)),
			State:  output.State,
			Notary: output.Notary,
		}
	}

	return refs, nil
}

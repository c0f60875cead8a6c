package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/store"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/mino/minoch"
	"go.dedis.ch/dvp/protocol/resolver"
	"go.dedis.ch/dvp/serde"
)

func makeBackchain(t *testing.T) (tx.SignedTransaction, tx.SignedTransaction) {
	f := crypto.NewSha256Factory()

	notarySigner := schnorr.NewSigner()
	notary := ledger.NewParty("notary", notarySigner.GetPublicKey())

	owner := schnorr.NewSigner()
	recipient := schnorr.NewSigner()

	b := tx.NewBuilder(f)
	require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(10, "USD"), owner.GetPublicKey()), notary))
	require.NoError(t, b.AddCommand(cash.Issue{}, owner.GetPublicKey()))
	require.NoError(t, b.SignWith(owner))

	issuance, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	issuance = sign(t, issuance, notarySigner)

	hash, err := issuance.Hash(f)
	require.NoError(t, err)

	b = tx.NewBuilder(f)
	require.NoError(t, b.AddInput(ledger.NewStateRef(hash, 0)))
	require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(10, "USD"), recipient.GetPublicKey()), notary))
	require.NoError(t, b.AddCommand(cash.Spend{}, owner.GetPublicKey()))
	require.NoError(t, b.SignWith(owner))

	spend, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	return issuance, sign(t, spend, notarySigner)
}

func sign(t *testing.T, stx tx.SignedTransaction, signer crypto.Signer) tx.SignedTransaction {
	f := crypto.NewSha256Factory()

	digest, err := stx.Hash(f)
	require.NoError(t, err)

	sig, err := signer.Sign(digest)
	require.NoError(t, err)

	stx, err = stx.WithSignature(tx.NewNotarySignature(signer.GetPublicKey(), sig, "notary"))
	require.NoError(t, err)

	return stx
}

func TestResolver_Resolve_Fetch(t *testing.T) {
	f := crypto.NewSha256Factory()

	mgr := minoch.NewManager()

	issuance, spend := makeBackchain(t)

	peerStore := store.NewInMemory(f)
	require.NoError(t, peerStore.Put(issuance))
	require.NoError(t, peerStore.Put(spend))

	peerMino := minoch.MustCreate(mgr, "peer")

	_, err := resolver.NewResolver(peerMino, peerStore, f)
	require.NoError(t, err)

	localStore := store.NewInMemory(f)
	localMino := minoch.MustCreate(mgr, "local")

	r, err := resolver.NewResolver(localMino, localStore, f)
	require.NoError(t, err)

	hash, err := spend.Hash(f)
	require.NoError(t, err)

	ref := ledger.NewStateRef(hash, 0)

	ctx := context.Background()

	resolved, err := r.Resolve(ctx, []ledger.StateRef{ref}, peerMino.GetAddress())
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, "notary", resolved[0].Notary.GetName())

	state, ok := resolved[0].State.(cash.State)
	require.True(t, ok)
	require.True(t, state.GetAmount().Equal(cash.NewAmount(10, "USD")))

	// The whole backchain has been cached locally.
	require.Equal(t, 2, localStore.Len())

	// A cached reference resolves without contacting anyone.
	offline := minoch.MustCreate(mgr, "offline")

	resolved, err = r.Resolve(ctx, []ledger.StateRef{ref}, offline.GetAddress())
	require.NoError(t, err)
	require.Len(t, resolved, 1)
}

func TestResolver_Resolve_Unresolvable(t *testing.T) {
	f := crypto.NewSha256Factory()

	mgr := minoch.NewManager()

	peerMino := minoch.MustCreate(mgr, "peer")

	_, err := resolver.NewResolver(peerMino, store.NewInMemory(f), f)
	require.NoError(t, err)

	localMino := minoch.MustCreate(mgr, "local")

	r, err := resolver.NewResolver(localMino, store.NewInMemory(f), f)
	require.NoError(t, err)

	ref := ledger.NewStateRef([]byte{0x01}, 0)

	_, err = r.Resolve(context.Background(), []ledger.StateRef{ref}, peerMino.GetAddress())
	require.Error(t, err)

	var unresolvable resolver.UnresolvableError
	require.ErrorAs(t, err, &unresolvable)
	require.Equal(t, []byte{0x01}, unresolvable.Hash)
	require.Contains(t, unresolvable.Error(), "cannot be resolved")
}

func TestResolver_Resolve_LyingPeer(t *testing.T) {
	f := crypto.NewSha256Factory()

	mgr := minoch.NewManager()

	issuance, spend := makeBackchain(t)

	liarMino := minoch.MustCreate(mgr, "liar")

	// The liar answers every request with the issuance transaction.
	_, err := liarMino.CreateRPC(resolver.RPCName, liar{stx: issuance}, resolver.MessageFactory{})
	require.NoError(t, err)

	localMino := minoch.MustCreate(mgr, "local")

	r, err := resolver.NewResolver(localMino, store.NewInMemory(f), f)
	require.NoError(t, err)

	hash, err := spend.Hash(f)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), []ledger.StateRef{ledger.NewStateRef(hash, 0)}, liarMino.GetAddress())
	require.Error(t, err)
	require.Contains(t, err.Error(), "hashes to")

	var unresolvable resolver.UnresolvableError
	require.ErrorAs(t, err, &unresolvable)
	require.Equal(t, hash, unresolvable.Hash)
}

func TestResolver_Resolve_UnsignedTransaction(t *testing.T) {
	f := crypto.NewSha256Factory()

	mgr := minoch.NewManager()

	notary := ledger.NewParty("notary", schnorr.NewSigner().GetPublicKey())

	owner := schnorr.NewSigner()

	b := tx.NewBuilder(f)
	require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(10, "USD"), owner.GetPublicKey()), notary))
	require.NoError(t, b.AddCommand(cash.Issue{}, owner.GetPublicKey()))
	require.NoError(t, b.SignWith(owner))

	unsigned, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	liarMino := minoch.MustCreate(mgr, "liar")

	_, err = liarMino.CreateRPC(resolver.RPCName, liar{stx: unsigned}, resolver.MessageFactory{})
	require.NoError(t, err)

	localMino := minoch.MustCreate(mgr, "local")

	r, err := resolver.NewResolver(localMino, store.NewInMemory(f), f)
	require.NoError(t, err)

	hash, err := unsigned.Hash(f)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), []ledger.StateRef{ledger.NewStateRef(hash, 0)}, liarMino.GetAddress())
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetched transaction is invalid")

	var unresolvable resolver.UnresolvableError
	require.ErrorAs(t, err, &unresolvable)
	require.Equal(t, hash, unresolvable.Hash)
}

func TestResolver_Resolve_Diamond(t *testing.T) {
	f := crypto.NewSha256Factory()

	mgr := minoch.NewManager()

	notarySigner := schnorr.NewSigner()
	notary := ledger.NewParty("notary", notarySigner.GetPublicKey())

	left := schnorr.NewSigner()
	right := schnorr.NewSigner()
	recipient := schnorr.NewSigner()

	// One ancestor transaction funds two branches that are spent separately.
	b := tx.NewBuilder(f)
	require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(10, "USD"), left.GetPublicKey()), notary))
	require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(20, "USD"), right.GetPublicKey()), notary))
	require.NoError(t, b.AddCommand(cash.Issue{}, left.GetPublicKey()))
	require.NoError(t, b.SignWith(left))

	ancestor, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	ancestor = sign(t, ancestor, notarySigner)

	ancestorHash, err := ancestor.Hash(f)
	require.NoError(t, err)

	branches := make([]tx.SignedTransaction, 2)
	for i, signer := range []crypto.Signer{left, right} {
		b := tx.NewBuilder(f)
		require.NoError(t, b.AddInput(ledger.NewStateRef(ancestorHash, uint32(i))))
		require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(10, "USD"), recipient.GetPublicKey()), notary))
		require.NoError(t, b.AddCommand(cash.Spend{}, signer.GetPublicKey()))
		require.NoError(t, b.SignWith(signer))

		branch, err := b.ToSignedTransaction(true)
		require.NoError(t, err)

		branches[i] = sign(t, branch, notarySigner)
	}

	peerStore := store.NewInMemory(f)
	require.NoError(t, peerStore.Put(ancestor))
	require.NoError(t, peerStore.Put(branches[0]))
	require.NoError(t, peerStore.Put(branches[1]))

	peerMino := minoch.MustCreate(mgr, "peer")

	server := &countingServer{store: peerStore, counts: map[string]int{}}

	_, err = peerMino.CreateRPC(resolver.RPCName, server, resolver.MessageFactory{})
	require.NoError(t, err)

	localStore := store.NewInMemory(f)
	localMino := minoch.MustCreate(mgr, "local")

	r, err := resolver.NewResolver(localMino, localStore, f)
	require.NoError(t, err)

	refs := make([]ledger.StateRef, 2)
	for i, branch := range branches {
		hash, err := branch.Hash(f)
		require.NoError(t, err)

		refs[i] = ledger.NewStateRef(hash, 0)
	}

	resolved, err := r.Resolve(context.Background(), refs, peerMino.GetAddress())
	require.NoError(t, err)
	require.Len(t, resolved, 2)

	// The shared ancestor is fetched exactly once.
	require.Equal(t, 1, server.counts[string(ancestorHash)])
	for _, count := range server.counts {
		require.Equal(t, 1, count)
	}
	require.Equal(t, 3, localStore.Len())
}

// countingServer serves resolutions from its store and records how many times
// each transaction is requested.
type countingServer struct {
	mino.UnsupportedHandler

	store  *store.InMemory
	counts map[string]int
}

func (h *countingServer) Process(req mino.Request) (serde.Message, error) {
	in := req.Message.(resolver.Request)

	h.counts[string(in.GetHash())]++

	stx, found, err := h.store.Get(in.GetHash())
	if err != nil {
		return nil, err
	}

	if !found {
		return resolver.NewNotFound(in.GetHash()), nil
	}

	return resolver.NewFound(stx), nil
}

// liar answers every resolution request with the same transaction.
type liar struct {
	mino.UnsupportedHandler

	stx tx.SignedTransaction
}

func (h liar) Process(req mino.Request) (serde.Message, error) {
	return resolver.NewFound(h.stx), nil
}

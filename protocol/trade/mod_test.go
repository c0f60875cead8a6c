package trade

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/store"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
)

var assetRef = ledger.NewStateRef(bytes.Repeat([]byte{0xaa}, 32), 0)

func TestPriceMismatchError(t *testing.T) {
	err := PriceMismatchError{
		Expected: cash.NewAmount(60, "USD"),
		Actual:   cash.NewAmount(10, "USD"),
	}

	require.EqualError(t, err, "proposal pays 10 USD instead of 60 USD")
}

func TestAssetMismatchError(t *testing.T) {
	err := AssetMismatchError{Expected: assetRef}
	require.Contains(t, err.Error(), "proposal does not consume the offered asset")
}

func TestTerms_Getters(t *testing.T) {
	asset := ledger.StateAndRef{Ref: assetRef}
	price := cash.NewAmount(60, "USD")

	terms := NewTerms(asset, price, fake.PublicKey{})

	require.True(t, terms.GetAsset().Ref.Equal(assetRef))
	require.True(t, terms.GetPrice().Equal(price))
	require.Equal(t, fake.PublicKey{}, terms.GetPayTo())
}

func TestBuyerHooks_ValidateTerms(t *testing.T) {
	sender := ledger.NewParty("seller", fake.PublicKey{})

	makeTerms := func(price cash.Amount) Terms {
		return NewTerms(ledger.StateAndRef{Ref: assetRef}, price, fake.PublicKey{})
	}

	// No limit accepts any price.
	hooks := buyerHooks{buyer: &Buyer{policy: Policy{}}}
	err := hooks.ValidateTerms(sender, makeTerms(cash.NewAmount(1000, "USD")))
	require.NoError(t, err)

	hooks = buyerHooks{buyer: &Buyer{policy: Policy{MaxPrice: cash.NewAmount(50, "USD")}}}

	err = hooks.ValidateTerms(sender, makeTerms(cash.NewAmount(50, "USD")))
	require.NoError(t, err)

	err = hooks.ValidateTerms(sender, makeTerms(cash.NewAmount(60, "USD")))
	require.EqualError(t, err, "terms rejected: price 60 USD exceeds the limit 50 USD")

	err = hooks.ValidateTerms(sender, makeTerms(cash.NewAmount(10, "EUR")))
	require.EqualError(t, err, "terms rejected: cannot pay in EUR")

	err = hooks.ValidateTerms(sender, fake.Message{})
	require.EqualError(t, err, "invalid payload of type 'fake.Message'")
}

func TestSellerHooks_CheckProposal(t *testing.T) {
	f := crypto.NewSha256Factory()

	payTo := schnorr.NewSigner().GetPublicKey()

	hooks := sellerHooks{
		asset: ledger.StateAndRef{Ref: assetRef},
		price: cash.NewAmount(60, "USD"),
		payTo: payTo,
	}

	makeProposal := func(paid uint64, owner crypto.PublicKey) (tx.SignedTransaction, []ledger.StateAndRef) {
		b := tx.NewBuilder(f)

		notary := ledger.NewParty("notary", fake.PublicKey{})

		require.NoError(t, b.AddInput(assetRef))
		require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(paid, "USD"), owner), notary))

		stx, err := b.ToSignedTransaction(false)
		require.NoError(t, err)

		return stx, []ledger.StateAndRef{{Ref: assetRef}}
	}

	stx, inputs := makeProposal(60, payTo)
	require.NoError(t, hooks.CheckProposal(stx, inputs))

	// The asset of the offer must be consumed.
	stx, _ = makeProposal(60, payTo)
	err := hooks.CheckProposal(stx, nil)
	require.IsType(t, AssetMismatchError{}, err)

	// The payment must reach the asked price.
	stx, inputs = makeProposal(10, payTo)
	err = hooks.CheckProposal(stx, inputs)
	require.EqualError(t, err, "proposal pays 10 USD instead of 60 USD")

	// A payment to someone else does not count.
	stx, inputs = makeProposal(60, schnorr.NewSigner().GetPublicKey())
	err = hooks.CheckProposal(stx, inputs)
	require.IsType(t, PriceMismatchError{}, err)
}

func TestObserver_Process(t *testing.T) {
	f := crypto.NewSha256Factory()

	observer := &Observer{store: store.NewInMemory(f), hashFactory: f}

	notarySigner := schnorr.NewSigner()
	notary := ledger.NewParty("notary", notarySigner.GetPublicKey())

	owner := schnorr.NewSigner()

	b := tx.NewBuilder(f)
	require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(10, "USD"), owner.GetPublicKey()), notary))
	require.NoError(t, b.AddCommand(cash.Issue{}, owner.GetPublicKey()))
	require.NoError(t, b.SignWith(owner))

	stx, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	// A copy without the notary signature is refused.
	_, err = observer.Process(mino.Request{Message: NewRecorded(stx)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "copy is not fully signed")

	digest, err := stx.Hash(f)
	require.NoError(t, err)

	sig, err := notarySigner.Sign(digest)
	require.NoError(t, err)

	stx, err = stx.WithSignature(tx.NewNotarySignature(notarySigner.GetPublicKey(), sig, "notary"))
	require.NoError(t, err)

	resp, err := observer.Process(mino.Request{Message: NewRecorded(stx)})
	require.NoError(t, err)
	require.Equal(t, Ack{}, resp)

	_, found, err := observer.store.Get(digest)
	require.NoError(t, err)
	require.True(t, found)

	_, err = observer.Process(mino.Request{Message: fake.Message{}})
	require.EqualError(t, err, "invalid request of type 'fake.Message'")
}

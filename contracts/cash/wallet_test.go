package cash

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
)

func TestWallet_Add(t *testing.T) {
	wallet := NewWallet(crypto.NewSha256Factory())

	err := wallet.Add(makeCandidate(1, NewAmount(10, "USD"), fake.PublicKey{}))
	require.NoError(t, err)
	require.Len(t, wallet.List(), 1)

	err = wallet.Add(ledger.StateAndRef{State: fake.Message{}})
	require.EqualError(t, err, "invalid state of type 'fake.Message'")
}

func TestWallet_Balance(t *testing.T) {
	wallet := NewWallet(crypto.NewSha256Factory())

	require.NoError(t, wallet.Add(makeCandidate(1, NewAmount(10, "USD"), fake.PublicKey{})))
	require.NoError(t, wallet.Add(makeCandidate(2, NewAmount(5, "USD"), fake.PublicKey{})))
	require.NoError(t, wallet.Add(makeCandidate(3, NewAmount(3, "EUR"), fake.PublicKey{})))

	require.True(t, wallet.Balance("USD").Equal(NewAmount(15, "USD")))
	require.True(t, wallet.Balance("EUR").Equal(NewAmount(3, "EUR")))
	require.True(t, wallet.Balance("CHF").Equal(NewAmount(0, "CHF")))
}

func TestWallet_Update(t *testing.T) {
	f := crypto.NewSha256Factory()
	wallet := NewWallet(f)

	owner := schnorr.NewSigner()
	payee := schnorr.NewSigner()

	spent := makeCandidate(1, NewAmount(10, "USD"), owner.GetPublicKey())
	require.NoError(t, wallet.Add(spent))

	b := tx.NewBuilder(f)

	_, err := GenerateSpend(b, NewAmount(7, "USD"), payee.GetPublicKey(),
		[]ledger.StateAndRef{spent}, owner.GetPublicKey())
	require.NoError(t, err)
	require.NoError(t, b.SignWith(owner))

	stx, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	isOwned := func(key crypto.PublicKey) bool {
		return key.Equal(owner.GetPublicKey())
	}

	require.NoError(t, wallet.Update(stx, isOwned))

	// The spent state is gone and the change is recorded.
	require.True(t, wallet.Balance("USD").Equal(NewAmount(3, "USD")))

	bad := NewWallet(fake.NewBadHashFactory(f))
	err = bad.Update(stx, isOwned)
	require.Error(t, err)
}

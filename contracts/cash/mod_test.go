package cash

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
)

func TestAmount_Add(t *testing.T) {
	sum, err := NewAmount(10, "USD").Add(NewAmount(5, "USD"))
	require.NoError(t, err)
	require.True(t, sum.Equal(NewAmount(15, "USD")))

	_, err = NewAmount(10, "USD").Add(NewAmount(5, "EUR"))
	require.EqualError(t, err, "mismatching currencies 'USD' and 'EUR'")
}

func TestAmount_String(t *testing.T) {
	require.Equal(t, "10 USD", NewAmount(10, "USD").String())
}

func TestAmount_Fingerprint(t *testing.T) {
	buffer := new(bytes.Buffer)

	err := NewAmount(1, "USD").Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, "\x00\x00\x00\x00\x00\x00\x00\x01USD", buffer.String())
}

func TestState_Fingerprint(t *testing.T) {
	state := NewState(NewAmount(1, "USD"), fake.PublicKey{})

	buffer := new(bytes.Buffer)
	err := state.Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, "\x00\x00\x00\x00\x00\x00\x00\x01USDPK", buffer.String())

	bad := NewState(NewAmount(1, "USD"), fake.NewBadPublicKey())
	err = bad.Fingerprint(new(bytes.Buffer))
	require.EqualError(t, err, fake.Err("couldn't marshal owner"))
}

func makeCandidate(seed byte, amount Amount, owner crypto.PublicKey) ledger.StateAndRef {
	return ledger.StateAndRef{
		Ref:    ledger.NewStateRef([]byte{seed}, 0),
		State:  NewState(amount, owner),
		Notary: ledger.NewParty("notary", fake.PublicKey{}),
	}
}

func TestGenerateSpend_Exact(t *testing.T) {
	owner := schnorr.NewSigner().GetPublicKey()
	payee := schnorr.NewSigner().GetPublicKey()

	b := tx.NewBuilder(crypto.NewSha256Factory())

	owners, err := GenerateSpend(b, NewAmount(10, "USD"), payee,
		[]ledger.StateAndRef{makeCandidate(1, NewAmount(10, "USD"), owner)}, owner)
	require.NoError(t, err)
	require.Len(t, owners, 1)
	require.True(t, owners[0].Equal(owner))

	stx, err := b.ToSignedTransaction(false)
	require.NoError(t, err)

	wire := stx.GetWire()
	require.Len(t, wire.GetInputs(), 1)
	require.Len(t, wire.GetOutputs(), 1)
	require.True(t, wire.GetOutputs()[0].State.(State).GetAmount().Equal(NewAmount(10, "USD")))
}

func TestGenerateSpend_WithChange(t *testing.T) {
	owner := schnorr.NewSigner().GetPublicKey()
	payee := schnorr.NewSigner().GetPublicKey()
	changeOwner := schnorr.NewSigner().GetPublicKey()

	candidates := []ledger.StateAndRef{
		makeCandidate(1, NewAmount(4, "USD"), owner),
		makeCandidate(2, NewAmount(1, "EUR"), owner),
		makeCandidate(3, NewAmount(8, "USD"), owner),
	}

	b := tx.NewBuilder(crypto.NewSha256Factory())

	owners, err := GenerateSpend(b, NewAmount(10, "USD"), payee, candidates, changeOwner)
	require.NoError(t, err)
	require.Len(t, owners, 1)

	stx, err := b.ToSignedTransaction(false)
	require.NoError(t, err)

	wire := stx.GetWire()
	// The euro state is skipped, both dollar states are consumed.
	require.Len(t, wire.GetInputs(), 2)
	require.Len(t, wire.GetOutputs(), 2)

	change := wire.GetOutputs()[1].State.(State)
	require.True(t, change.GetAmount().Equal(NewAmount(2, "USD")))
	require.True(t, change.GetOwner().Equal(changeOwner))
}

func TestGenerateSpend_InsufficientFunds(t *testing.T) {
	owner := schnorr.NewSigner().GetPublicKey()

	b := tx.NewBuilder(crypto.NewSha256Factory())

	_, err := GenerateSpend(b, NewAmount(10, "USD"), owner,
		[]ledger.StateAndRef{makeCandidate(1, NewAmount(3, "USD"), owner)}, owner)
	require.EqualError(t, err,
		"insufficient funds: 10 USD requested but only 3 USD available")
}

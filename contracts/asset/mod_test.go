package asset

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

func TestState_Move(t *testing.T) {
	owner := schnorr.NewSigner().GetPublicKey()
	newOwner := schnorr.NewSigner().GetPublicKey()

	state := NewState("commodity-1", owner)

	moved, cmd := state.Move(newOwner)
	require.Equal(t, "commodity-1", moved.(State).GetName())
	require.True(t, moved.GetOwner().Equal(newOwner))
	require.Equal(t, Move{}, cmd)

	// The original state is left untouched.
	require.True(t, state.GetOwner().Equal(owner))
}

func TestState_Fingerprint(t *testing.T) {
	state := NewState("commodity-1", fake.PublicKey{})

	buffer := new(bytes.Buffer)
	err := state.Fingerprint(buffer)
	require.NoError(t, err)
	require.Equal(t, "commodity-1PK", buffer.String())

	bad := NewState("commodity-1", fake.NewBadPublicKey())
	err = bad.Fingerprint(new(bytes.Buffer))
	require.EqualError(t, err, fake.Err("couldn't marshal owner"))
}

func makeAsset(seed byte, name string, owner crypto.PublicKey) ledger.StateAndRef {
	return ledger.StateAndRef{
		Ref:    ledger.NewStateRef([]byte{seed}, 0),
		State:  NewState(name, owner),
		Notary: ledger.NewParty("notary", fake.PublicKey{}),
	}
}

func TestGenerateMove(t *testing.T) {
	owner := schnorr.NewSigner().GetPublicKey()
	newOwner := schnorr.NewSigner().GetPublicKey()

	sar := makeAsset(1, "commodity-1", owner)

	b := tx.NewBuilder(crypto.NewSha256Factory())

	signer, err := GenerateMove(b, sar, newOwner)
	require.NoError(t, err)
	require.True(t, signer.Equal(owner))

	stx, err := b.ToSignedTransaction(false)
	require.NoError(t, err)

	wire := stx.GetWire()
	require.Len(t, wire.GetInputs(), 1)
	require.True(t, wire.GetInputs()[0].Equal(sar.Ref))
	require.True(t, wire.GetOutputs()[0].State.(State).GetOwner().Equal(newOwner))

	_, err = GenerateMove(b, ledger.StateAndRef{State: fake.Message{}}, newOwner)
	require.EqualError(t, err, "invalid state of type 'fake.Message'")
}

func makeMoveWire(outputs ...State) tx.WireTransaction {
	outs := make([]tx.Output, len(outputs))
	for i, state := range outputs {
		outs[i] = tx.Output{
			State:  state,
			Notary: ledger.NewParty("notary", fake.PublicKey{}),
		}
	}

	return tx.NewWireTransaction(nil, outs, nil, nil)
}

func TestContract_ValidateMove(t *testing.T) {
	contract := NewContract()

	owner := schnorr.NewSigner().GetPublicKey()
	newOwner := schnorr.NewSigner().GetPublicKey()

	inputs := []ledger.StateAndRef{makeAsset(1, "commodity-1", owner)}
	cmd := ledger.Command{Value: Move{}, Signers: []crypto.PublicKey{owner}}

	err := contract.Validate(cmd, makeMoveWire(NewState("commodity-1", newOwner)), inputs)
	require.NoError(t, err)

	// The asset must reappear in the outputs.
	err = contract.Validate(cmd, makeMoveWire(), inputs)
	require.EqualError(t, err, "asset 'commodity-1' disappears from the outputs")

	// The move must be signed by the current owner.
	stranger := ledger.Command{
		Value:   Move{},
		Signers: []crypto.PublicKey{schnorr.NewSigner().GetPublicKey()},
	}
	err = contract.Validate(stranger, makeMoveWire(NewState("commodity-1", newOwner)), inputs)
	require.EqualError(t, err, "owner of asset 'commodity-1' is not a signer")

	err = contract.Validate(cmd, makeMoveWire(), nil)
	require.EqualError(t, err, "move command without asset input")
}

func TestContract_ValidateIssue(t *testing.T) {
	contract := NewContract()

	cmd := ledger.Command{Value: Issue{}, Signers: []crypto.PublicKey{fake.PublicKey{}}}

	err := contract.Validate(cmd, makeMoveWire(NewState("commodity-1", fake.PublicKey{})), nil)
	require.NoError(t, err)

	inputs := []ledger.StateAndRef{makeAsset(1, "commodity-1", fake.PublicKey{})}
	err = contract.Validate(cmd, makeMoveWire(), inputs)
	require.EqualError(t, err, "issue command cannot consume an asset")

	unsigned := ledger.Command{Value: Issue{}}
	err = contract.Validate(unsigned, makeMoveWire(), nil)
	require.EqualError(t, err, "issue command requires an issuer signature")
}

func TestContract_Validate_UnknownCommand(t *testing.T) {
	contract := NewContract()

	err := contract.Validate(ledger.Command{Value: fake.Message{}}, makeMoveWire(), nil)
	require.EqualError(t, err, "unknown command of type 'fake.Message'")
}

package tx

import (
	"time"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"golang.org/x/xerrors"
)

// Builder is a mutable, in-progress transaction. It accumulates inputs,
// outputs, commands and signers until it is converted to a signed
// transaction, after which any further use fails with a
// FinalizedBuilderError.
//
// A builder is single-writer and single-use. It must not be shared between
// protocol instances.
type Builder struct {
	hashFactory crypto.HashFactory
	inputs      []ledger.StateRef
	outputs     []Output
	commands    []ledger.Command
	window      *ledger.TimeWindow
	signers     []crypto.Signer
	finalized   bool
}

// NewBuilder creates a new empty transaction builder.
func NewBuilder(f crypto.HashFactory) *Builder {
	return &Builder{
		hashFactory: f,
	}
}

// AddInput appends a consumed state reference.
func (b *Builder) AddInput(ref ledger.StateRef) error {
	if b.finalized {
		return FinalizedBuilderError{}
	}

	b.inputs = append(b.inputs, ref)

	return nil
}

// AddOutput appends a produced state, assigned to the notary.
func (b *Builder) AddOutput(state ledger.ContractState, notary ledger.Party) error {
	if b.finalized {
		return FinalizedBuilderError{}
	}

	b.outputs = append(b.outputs, Output{State: state, Notary: notary})

	return nil
}

// AddCommand appends an authorized action and the keys required to sign for
// it.
func (b *Builder) AddCommand(data ledger.CommandData, signers ...crypto.PublicKey) error {
	if b.finalized {
		return FinalizedBuilderError{}
	}

	b.commands = append(b.commands, ledger.Command{Value: data, Signers: signers})

	return nil
}

// SetTimeWindow sets the time window of the transaction to the instant plus
// or minus the tolerance.
func (b *Builder) SetTimeWindow(instant time.Time, tolerance time.Duration) error {
	if b.finalized {
		return FinalizedBuilderError{}
	}

	window := ledger.NewTimeWindow(instant, tolerance)
	b.window = &window

	return nil
}

// SignWith registers a signer whose signature will be computed over the final
// wire bytes when the builder is converted. Registering the same signer twice
// produces a single signature.
func (b *Builder) SignWith(signer crypto.Signer) error {
	if b.finalized {
		return FinalizedBuilderError{}
	}

	for _, s := range b.signers {
		if s.GetPublicKey().Equal(signer.GetPublicKey()) {
			return nil
		}
	}

	b.signers = append(b.signers, signer)

	return nil
}

// ToSignedTransaction converts the builder into an immutable signed
// transaction carrying the signatures of the registered signers. When
// checkSufficientSignatures is enabled, it fails with an
// InsufficientSignaturesError if some command requires a signer that has not
// signed. The builder is finalized in any case of success and cannot be
// mutated afterwards.
func (b *Builder) ToSignedTransaction(checkSufficientSignatures bool) (SignedTransaction, error) {
	if b.finalized {
		return SignedTransaction{}, FinalizedBuilderError{}
	}

	wire := NewWireTransaction(b.inputs, b.outputs, b.commands, b.window)

	digest, err := wire.Hash(b.hashFactory)
	if err != nil {
		return SignedTransaction{}, xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	stx := SignedTransaction{wire: wire}

	for _, signer := range b.signers {
		sig, err := signer.Sign(digest)
		if err != nil {
			return SignedTransaction{}, xerrors.Errorf("couldn't sign: %v", err)
		}

		stx, err = stx.WithSignature(NewDigitalSignature(signer.GetPublicKey(), sig))
		if err != nil {
			return SignedTransaction{}, xerrors.Errorf("couldn't append signature: %v", err)
		}
	}

	if checkSufficientSignatures {
		missing := make([]crypto.PublicKey, 0)
		for _, key := range wire.GetRequiredSigners() {
			if !stx.HasSignatureFrom(key) {
				missing = append(missing, key)
			}
		}

		if len(missing) > 0 {
			return SignedTransaction{}, InsufficientSignaturesError{Missing: missing}
		}
	}

	b.finalized = true

	return stx, nil
}

// Package asset implements a generic ownable asset state.
//
// An asset is a named, non-fungible piece of ledger data assigned to a single
// owner key. Its ownership is transferred by consuming the state and
// producing an identical one with the new owner, authorized by a move command
// signed by the previous owner.
package asset

import (
	"io"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/serde"
	"go.dedis.ch/dvp/serde/registry"
	"golang.org/x/xerrors"
)

var msgFormats = registry.NewSimpleRegistry()

// RegisterMessageFormat registers the engine for the provided format.
func RegisterMessageFormat(format serde.Format, engine serde.FormatEngine) {
	msgFormats.Register(format, engine)
}

func init() {
	serde.RegisterMessage(State{}, MessageFactory{})
	serde.RegisterMessage(Move{}, MessageFactory{})
	serde.RegisterMessage(Issue{}, MessageFactory{})
}

// State is an asset state owned by a public key.
//
// - implements ledger.OwnableState
type State struct {
	name  string
	owner crypto.PublicKey
}

// NewState creates an asset of the name for the owner.
func NewState(name string, owner crypto.PublicKey) State {
	return State{
		name:  name,
		owner: owner,
	}
}

// GetName returns the name of the asset.
func (s State) GetName() string {
	return s.name
}

// GetOwner implements ledger.OwnableState. It returns the owner key of the
// asset.
func (s State) GetOwner() crypto.PublicKey {
	return s.owner
}

// Move implements ledger.OwnableState. It returns the asset assigned to the
// new owner and the command that requires the signature of the current owner.
func (s State) Move(newOwner crypto.PublicKey) (ledger.OwnableState, ledger.CommandData) {
	return State{name: s.name, owner: newOwner}, Move{}
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the asset.
func (s State) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte(s.name))
	if err != nil {
		return xerrors.Errorf("couldn't write name: %v", err)
	}

	key, err := s.owner.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal owner: %v", err)
	}

	_, err = w.Write(key)
	if err != nil {
		return xerrors.Errorf("couldn't write owner: %v", err)
	}

	return nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// asset.
func (s State) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, s)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode state: %v", err)
	}

	return data, nil
}

// Move is the command to transfer the ownership of an asset. It requires the
// signature of the current owner.
//
// - implements ledger.CommandData
type Move struct{}

// Fingerprint implements serde.Fingerprinter.
func (Move) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte("asset:move"))
	return err
}

// Serialize implements serde.Message.
func (c Move) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, c)
}

// Issue is the command to create an asset. It requires the signature of the
// issuer.
//
// - implements ledger.CommandData
type Issue struct{}

// Fingerprint implements serde.Fingerprinter.
func (Issue) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte("asset:issue"))
	return err
}

// Serialize implements serde.Message.
func (c Issue) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, c)
}

// MessageFactory is a factory to deserialize the asset states and commands.
//
// - implements serde.Factory
type MessageFactory struct{}

// Deserialize implements serde.Factory. It returns the message deserialized
// if appropriate, otherwise an error.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	format := msgFormats.Get(ctx.GetFormat())

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode message: %v", err)
	}

	return msg, nil
}

// GenerateIssue fills the builder with the issuance of the asset to the
// owner.
func GenerateIssue(b *tx.Builder, name string, owner crypto.PublicKey,
	notary ledger.Party, issuer crypto.PublicKey) error {

	err := b.AddOutput(NewState(name, owner), notary)
	if err != nil {
		return xerrors.Errorf("couldn't add output: %v", err)
	}

	err = b.AddCommand(Issue{}, issuer)
	if err != nil {
		return xerrors.Errorf("couldn't add command: %v", err)
	}

	return nil
}

// GenerateMove fills the builder with the transfer of the asset to the new
// owner. It returns the key of the current owner, which is the required
// signer of the move command.
func GenerateMove(b *tx.Builder, sar ledger.StateAndRef, newOwner crypto.PublicKey) (crypto.PublicKey, error) {
	state, ok := sar.State.(ledger.OwnableState)
	if !ok {
		return nil, xerrors.Errorf("invalid state of type '%T'", sar.State)
	}

	err := b.AddInput(sar.Ref)
	if err != nil {
		return nil, xerrors.Errorf("couldn't add input: %v", err)
	}

	moved, cmd := state.Move(newOwner)

	err = b.AddOutput(moved, sar.Notary)
	if err != nil {
		return nil, xerrors.Errorf("couldn't add output: %v", err)
	}

	err = b.AddCommand(cmd, state.GetOwner())
	if err != nil {
		return nil, xerrors.Errorf("couldn't add command: %v", err)
	}

	return state.GetOwner(), nil
}

// Contract verifies the asset commands of a transaction.
//
// - implements validation.Contract
type Contract struct{}

// NewContract returns the asset contract.
func NewContract() Contract {
	return Contract{}
}

// Validate implements validation.Contract. It verifies the state transition of
// the assets moved by the command.
func (c Contract) Validate(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	switch cmd.Value.(type) {
	case Move:
		return c.validateMove(cmd, wire, inputs)
	case Issue:
		return c.validateIssue(cmd, inputs)
	default:
		return xerrors.Errorf("unknown command of type '%T'", cmd.Value)
	}
}

func (c Contract) validateMove(cmd ledger.Command, wire tx.WireTransaction, inputs []ledger.StateAndRef) error {
	consumed := make(map[string]crypto.PublicKey)

	for _, input := range inputs {
		state, ok := input.State.(State)
		if !ok {
			continue
		}

		consumed[state.name] = state.owner
	}

	if len(consumed) == 0 {
		return xerrors.New("move command without asset input")
	}

	for name, owner := range consumed {
		signed := false
		for _, signer := range cmd.Signers {
			if signer.Equal(owner) {
				signed = true
				break
			}
		}

		if !signed {
			return xerrors.Errorf("owner of asset '%s' is not a signer", name)
		}

		found := false
		for _, output := range wire.GetOutputs() {
			state, ok := output.State.(State)
			if ok && state.name == name {
				found = true
				break
			}
		}

		if !found {
			return xerrors.Errorf("asset '%s' disappears from the outputs", name)
		}
	}

	return nil
}

func (c Contract) validateIssue(cmd ledger.Command, inputs []ledger.StateAndRef) error {
	for _, input := range inputs {
		if _, ok := input.State.(State); ok {
			return xerrors.New("issue command cannot consume an asset")
		}
	}

	if len(cmd.Signers) == 0 {
		return xerrors.New("issue command requires an issuer signature")
	}

	return nil
}

// Package json implements the JSON formats for the wire and the signed
// transactions.
package json

import (
	"time"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/ledger"
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	tx.RegisterWireFormat(serde.FormatJSON, wireFormat{})
	tx.RegisterSignedFormat(serde.FormatJSON, signedFormat{})
}

// Output is the JSON message of a transaction output.
type Output struct {
	State  ljson.Message
	Notary ljson.Party
}

// Command is the JSON message of a transaction command.
type Command struct {
	Value   ljson.Message
	Signers [][]byte
}

// TimeWindow is the JSON message of a transaction time window.
type TimeWindow struct {
	Instant   int64
	Tolerance int64
}

// WireTransaction is the JSON message of a wire transaction.
type WireTransaction struct {
	Inputs   []ljson.StateRef
	Outputs  []Output
	Commands []Command
	Window   *TimeWindow
}

// Signature is the JSON message of a digital signature.
type Signature struct {
	Signer    []byte
	Signature []byte
	Identity  string `json:",omitempty"`
}

// SignedTransaction is the JSON message of a signed transaction.
type SignedTransaction struct {
	Wire       WireTransaction
	Signatures []Signature
}

// EncodeWire returns the JSON message of the wire transaction.
func EncodeWire(ctx serde.Context, wire tx.WireTransaction) (WireTransaction, error) {
	m := WireTransaction{
		Inputs:   make([]ljson.StateRef, 0),
		Outputs:  make([]Output, 0),
		Commands: make([]Command, 0),
	}

	for _, input := range wire.GetInputs() {
		m.Inputs = append(m.Inputs, ljson.EncodeRef(input))
	}

	for _, output := range wire.GetOutputs() {
		state, err := ljson.EncodeMessage(ctx, output.State)
		if err != nil {
			return m, xerrors.Errorf("couldn't encode state: %v", err)
		}

		notary, err := ljson.EncodeParty(output.Notary)
		if err != nil {
			return m, xerrors.Errorf("couldn't encode notary: %v", err)
		}

		m.Outputs = append(m.Outputs, Output{State: state, Notary: notary})
	}

	for _, cmd := range wire.GetCommands() {
		value, err := ljson.EncodeMessage(ctx, cmd.Value)
		if err != nil {
			return m, xerrors.Errorf("couldn't encode command: %v", err)
		}

		signers := make([][]byte, len(cmd.Signers))
		for i, signer := range cmd.Signers {
			signers[i], err = ljson.EncodeKey(signer)
			if err != nil {
				return m, xerrors.Errorf("couldn't encode signer: %v", err)
			}
		}

		m.Commands = append(m.Commands, Command{Value: value, Signers: signers})
	}

	if window := wire.GetTimeWindow(); window != nil {
		m.Window = &TimeWindow{
			Instant:   window.GetInstant().UnixNano(),
			Tolerance: int64(window.GetTolerance()),
		}
	}

	return m, nil
}

// DecodeWire returns the wire transaction of the JSON message.
func DecodeWire(ctx serde.Context, m WireTransaction) (tx.WireTransaction, error) {
	inputs := make([]ledger.StateRef, len(m.Inputs))
	for i, input := range m.Inputs {
		inputs[i] = ljson.DecodeRef(input)
	}

	outputs := make([]tx.Output, len(m.Outputs))
	for i, output := range m.Outputs {
		msg, err := ljson.DecodeMessage(ctx, output.State)
		if err != nil {
			return tx.WireTransaction{}, xerrors.Errorf("couldn't decode state: %v", err)
		}

		state, ok := msg.(ledger.ContractState)
		if !ok {
			return tx.WireTransaction{}, xerrors.Errorf("invalid state of type '%T'", msg)
		}

		notary, err := ljson.DecodeParty(output.Notary)
		if err != nil {
			return tx.WireTransaction{}, xerrors.Errorf("couldn't decode notary: %v", err)
		}

		outputs[i] = tx.Output{State: state, Notary: notary}
	}

	commands := make([]ledger.Command, len(m.Commands))
	for i, cmd := range m.Commands {
		msg, err := ljson.DecodeMessage(ctx, cmd.Value)
		if err != nil {
			return tx.WireTransaction{}, xerrors.Errorf("couldn't decode command: %v", err)
		}

		value, ok := msg.(ledger.CommandData)
		if !ok {
			return tx.WireTransaction{}, xerrors.Errorf("invalid command of type '%T'", msg)
		}

		signers := make([]crypto.PublicKey, len(cmd.Signers))
		for j, signer := range cmd.Signers {
			signers[j], err = ljson.DecodeKey(signer)
			if err != nil {
				return tx.WireTransaction{}, xerrors.Errorf("couldn't decode signer: %v", err)
			}
		}

		commands[i] = ledger.Command{Value: value, Signers: signers}
	}

	var window *ledger.TimeWindow
	if m.Window != nil {
		w := ledger.NewTimeWindow(time.Unix(0, m.Window.Instant), time.Duration(m.Window.Tolerance))
		window = &w
	}

	return tx.NewWireTransaction(inputs, outputs, commands, window), nil
}

// EncodeSignature returns the JSON message of the digital signature.
func EncodeSignature(sig tx.DigitalSignature) (Signature, error) {
	signer, err := ljson.EncodeKey(sig.GetSigner())
	if err != nil {
		return Signature{}, xerrors.Errorf("couldn't encode signer: %v", err)
	}

	value, err := sig.GetSignature().MarshalBinary()
	if err != nil {
		return Signature{}, xerrors.Errorf("couldn't marshal signature: %v", err)
	}

	return Signature{
		Signer:    signer,
		Signature: value,
		Identity:  sig.GetIdentity(),
	}, nil
}

// DecodeSignature returns the digital signature of the JSON message.
func DecodeSignature(m Signature) (tx.DigitalSignature, error) {
	signer, err := ljson.DecodeKey(m.Signer)
	if err != nil {
		return tx.DigitalSignature{}, xerrors.Errorf("couldn't decode signer: %v", err)
	}

	sig := schnorr.NewSignature(m.Signature)

	if m.Identity != "" {
		return tx.NewNotarySignature(signer, sig, m.Identity), nil
	}

	return tx.NewDigitalSignature(signer, sig), nil
}

// wireFormat is the engine to encode and decode wire transactions in JSON
// format.
//
// - implements serde.FormatEngine
type wireFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// wire transaction if appropriate, otherwise an error.
func (f wireFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	wire, ok := msg.(tx.WireTransaction)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	m, err := EncodeWire(ctx, wire)
	if err != nil {
		return nil, err
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the wire transaction from
// the data if appropriate, otherwise it returns an error.
func (f wireFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := WireTransaction{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal transaction: %v", err)
	}

	return DecodeWire(ctx, m)
}

// signedFormat is the engine to encode and decode signed transactions in JSON
// format.
//
// - implements serde.FormatEngine
type signedFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// signed transaction if appropriate, otherwise an error.
func (f signedFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	stx, ok := msg.(tx.SignedTransaction)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	wire, err := EncodeWire(ctx, stx.GetWire())
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode wire: %v", err)
	}

	m := SignedTransaction{
		Wire:       wire,
		Signatures: make([]Signature, 0),
	}

	for _, sig := range stx.GetSignatures() {
		sm, err := EncodeSignature(sig)
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode signature: %v", err)
		}

		m.Signatures = append(m.Signatures, sm)
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the signed transaction
// from the data if appropriate, otherwise it returns an error.
func (f signedFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := SignedTransaction{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal transaction: %v", err)
	}

	wire, err := DecodeWire(ctx, m.Wire)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode wire: %v", err)
	}

	sigs := make([]tx.DigitalSignature, len(m.Signatures))
	for i, sm := range m.Signatures {
		sigs[i], err = DecodeSignature(sm)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode signature: %v", err)
		}
	}

	stx, err := tx.NewSignedTransaction(wire, sigs...)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create transaction: %v", err)
	}

	return stx, nil
}

// Package tx implements the transaction model of the ledger.
//
// A wire transaction consumes state references, produces outputs and carries
// the commands that authorize the state transition. A signed transaction pairs
// a wire transaction with an ordered collection of signatures from distinct
// signers. A transaction becomes eligible for recording only once every
// required signer, including the notary, has a valid signature over the wire
// bytes.
package tx

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/serde"
	"go.dedis.ch/dvp/serde/registry"
	"golang.org/x/xerrors"
)

var (
	wireFormats = registry.NewSimpleRegistry()

	signedFormats = registry.NewSimpleRegistry()
)

// RegisterWireFormat registers the engine for the provided format.
func RegisterWireFormat(format serde.Format, engine serde.FormatEngine) {
	wireFormats.Register(format, engine)
}

// RegisterSignedFormat registers the engine for the provided format.
func RegisterSignedFormat(format serde.Format, engine serde.FormatEngine) {
	signedFormats.Register(format, engine)
}

// Output is a state produced by a transaction, assigned to the notary that
// will certify its consumption.
type Output struct {
	State  ledger.ContractState
	Notary ledger.Party
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the output.
func (o Output) Fingerprint(w io.Writer) error {
	err := o.State.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("couldn't fingerprint state: %v", err)
	}

	err = o.Notary.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("couldn't fingerprint notary: %v", err)
	}

	return nil
}

// DigitalSignature is a signature over the wire bytes of a transaction, bound
// to the public key of its signer. A notary signature is additionally bound to
// the legal identity of the notary.
type DigitalSignature struct {
	signer    crypto.PublicKey
	signature crypto.Signature
	identity  string
}

// NewDigitalSignature creates a signature bound to the signer key.
func NewDigitalSignature(signer crypto.PublicKey, sig crypto.Signature) DigitalSignature {
	return DigitalSignature{
		signer:    signer,
		signature: sig,
	}
}

// NewNotarySignature creates a signature bound to the signer key and to the
// legal identity of a notary.
func NewNotarySignature(signer crypto.PublicKey, sig crypto.Signature, identity string) DigitalSignature {
	return DigitalSignature{
		signer:    signer,
		signature: sig,
		identity:  identity,
	}
}

// GetSigner returns the public key the signature is bound to.
func (s DigitalSignature) GetSigner() crypto.PublicKey {
	return s.signer
}

// GetSignature returns the signature value.
func (s DigitalSignature) GetSignature() crypto.Signature {
	return s.signature
}

// GetIdentity returns the legal identity of the notary, or an empty string for
// a regular signature.
func (s DigitalSignature) GetIdentity() string {
	return s.identity
}

// Verify returns nil when the signature is valid for the digest.
func (s DigitalSignature) Verify(digest []byte) error {
	err := s.signer.Verify(digest, s.signature)
	if err != nil {
		return xerrors.Errorf("couldn't verify: %v", err)
	}

	return nil
}

// WireTransaction is the immutable payload that the signatures of a
// transaction are computed over.
//
// - implements serde.Message
// - implements serde.Fingerprinter
type WireTransaction struct {
	inputs   []ledger.StateRef
	outputs  []Output
	commands []ledger.Command
	window   *ledger.TimeWindow
}

// NewWireTransaction creates a wire transaction from its parts.
func NewWireTransaction(inputs []ledger.StateRef, outputs []Output,
	commands []ledger.Command, window *ledger.TimeWindow) WireTransaction {

	return WireTransaction{
		inputs:   inputs,
		outputs:  outputs,
		commands: commands,
		window:   window,
	}
}

// GetInputs returns the list of consumed state references.
func (w WireTransaction) GetInputs() []ledger.StateRef {
	return append([]ledger.StateRef{}, w.inputs...)
}

// GetOutputs returns the list of produced outputs.
func (w WireTransaction) GetOutputs() []Output {
	return append([]Output{}, w.outputs...)
}

// GetCommands returns the list of commands.
func (w WireTransaction) GetCommands() []ledger.Command {
	return append([]ledger.Command{}, w.commands...)
}

// GetTimeWindow returns the time window of the transaction, or nil if none is
// set.
func (w WireTransaction) GetTimeWindow() *ledger.TimeWindow {
	return w.window
}

// GetRequiredSigners returns the distinct public keys that the commands
// require to sign the transaction.
func (w WireTransaction) GetRequiredSigners() []crypto.PublicKey {
	keys := make([]crypto.PublicKey, 0)
	for _, cmd := range w.commands {
		for _, signer := range cmd.Signers {
			if !containsKey(keys, signer) {
				keys = append(keys, signer)
			}
		}
	}

	return keys
}

// GetNotaries returns the distinct notaries assigned to the outputs.
func (w WireTransaction) GetNotaries() []ledger.Party {
	parties := make([]ledger.Party, 0)
	for _, out := range w.outputs {
		found := false
		for _, p := range parties {
			if p.Equal(out.Notary) {
				found = true
				break
			}
		}

		if !found {
			parties = append(parties, out.Notary)
		}
	}

	return parties
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the transaction.
func (w WireTransaction) Fingerprint(writer io.Writer) error {
	counters := make([]byte, 12)
	binary.BigEndian.PutUint32(counters[:4], uint32(len(w.inputs)))
	binary.BigEndian.PutUint32(counters[4:8], uint32(len(w.outputs)))
	binary.BigEndian.PutUint32(counters[8:], uint32(len(w.commands)))

	_, err := writer.Write(counters)
	if err != nil {
		return xerrors.Errorf("couldn't write counters: %v", err)
	}

	for _, input := range w.inputs {
		err = input.Fingerprint(writer)
		if err != nil {
			return xerrors.Errorf("couldn't fingerprint input: %v", err)
		}
	}

	for _, output := range w.outputs {
		err = output.Fingerprint(writer)
		if err != nil {
			return xerrors.Errorf("couldn't fingerprint output: %v", err)
		}
	}

	for _, cmd := range w.commands {
		err = cmd.Fingerprint(writer)
		if err != nil {
			return xerrors.Errorf("couldn't fingerprint command: %v", err)
		}
	}

	if w.window != nil {
		err = w.window.Fingerprint(writer)
		if err != nil {
			return xerrors.Errorf("couldn't fingerprint window: %v", err)
		}
	}

	return nil
}

// Hash returns the digest of the transaction wire bytes.
func (w WireTransaction) Hash(f crypto.HashFactory) ([]byte, error) {
	h := f.New()

	err := w.Fingerprint(h)
	if err != nil {
		return nil, xerrors.Errorf("couldn't fingerprint: %v", err)
	}

	return h.Sum(nil), nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// wire transaction.
func (w WireTransaction) Serialize(ctx serde.Context) ([]byte, error) {
	format := wireFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, w)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode wire transaction: %v", err)
	}

	return data, nil
}

// SignedTransaction is a wire transaction paired with the collection of
// signatures gathered so far. The collection is ordered and holds at most one
// signature per signer.
//
// - implements serde.Message
type SignedTransaction struct {
	wire WireTransaction
	sigs []DigitalSignature
}

// NewSignedTransaction creates a signed transaction from the wire transaction
// and the initial signatures. It returns an error if two signatures are bound
// to the same signer.
func NewSignedTransaction(wire WireTransaction, sigs ...DigitalSignature) (SignedTransaction, error) {
	stx := SignedTransaction{
		wire: wire,
	}

	for _, sig := range sigs {
		var err error

		stx, err = stx.WithSignature(sig)
		if err != nil {
			return stx, err
		}
	}

	return stx, nil
}

// GetWire returns the wire transaction.
func (s SignedTransaction) GetWire() WireTransaction {
	return s.wire
}

// GetSignatures returns the list of signatures.
func (s SignedTransaction) GetSignatures() []DigitalSignature {
	return append([]DigitalSignature{}, s.sigs...)
}

// Hash returns the digest of the underlying wire transaction, which uniquely
// identifies the transaction independently of the signatures.
func (s SignedTransaction) Hash(f crypto.HashFactory) ([]byte, error) {
	return s.wire.Hash(f)
}

// WithSignature returns the transaction with the signature appended. It
// returns an error if the signer has already signed the transaction.
func (s SignedTransaction) WithSignature(sig DigitalSignature) (SignedTransaction, error) {
	for _, other := range s.sigs {
		if other.signer.Equal(sig.signer) {
			return s, xerrors.Errorf("duplicate signature from '%v'", sig.signer)
		}
	}

	sigs := make([]DigitalSignature, len(s.sigs), len(s.sigs)+1)
	copy(sigs, s.sigs)

	return SignedTransaction{
		wire: s.wire,
		sigs: append(sigs, sig),
	}, nil
}

// HasSignatureFrom returns true when the signer has a signature in the
// collection.
func (s SignedTransaction) HasSignatureFrom(signer crypto.PublicKey) bool {
	for _, sig := range s.sigs {
		if sig.signer.Equal(signer) {
			return true
		}
	}

	return false
}

// VerifySignatures makes sure that every present signature cryptographically
// verifies against its signer key and the wire bytes, and that each of the
// required keys is covered by a present signature. It returns a
// SignatureVerificationError otherwise.
func (s SignedTransaction) VerifySignatures(f crypto.HashFactory, required ...crypto.PublicKey) error {
	digest, err := s.wire.Hash(f)
	if err != nil {
		return xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	for _, sig := range s.sigs {
		err = sig.Verify(digest)
		if err != nil {
			return SignatureVerificationError{Key: sig.signer, Err: err}
		}
	}

	for _, key := range required {
		if !s.HasSignatureFrom(key) {
			return SignatureVerificationError{Key: key}
		}
	}

	return nil
}

// VerifySignaturesExcept verifies the signatures like VerifySignatures, with
// the required keys taken from the commands of the transaction minus the
// given set of keys allowed to be missing. It is used to check a partially
// signed transaction before the missing signers commit.
func (s SignedTransaction) VerifySignaturesExcept(f crypto.HashFactory, missing ...crypto.PublicKey) error {
	required := make([]crypto.PublicKey, 0)
	for _, key := range s.wire.GetRequiredSigners() {
		if !containsKey(missing, key) {
			required = append(required, key)
		}
	}

	return s.VerifySignatures(f, required...)
}

// VerifyFullySigned makes sure the transaction bears a valid signature from
// every required signer and from every notary of its outputs. Only a fully
// signed transaction is eligible for recording.
func (s SignedTransaction) VerifyFullySigned(f crypto.HashFactory) error {
	required := s.wire.GetRequiredSigners()
	for _, notary := range s.wire.GetNotaries() {
		if !containsKey(required, notary.GetPublicKey()) {
			required = append(required, notary.GetPublicKey())
		}
	}

	return s.VerifySignatures(f, required...)
}

// Serialize implements serde.Message. It returns the serialized data of the
// signed transaction.
func (s SignedTransaction) Serialize(ctx serde.Context) ([]byte, error) {
	format := signedFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, s)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode signed transaction: %v", err)
	}

	return data, nil
}

// TransactionFactory is a factory to deserialize signed transactions.
//
// - implements serde.Factory
type TransactionFactory struct{}

// NewTransactionFactory returns a new instance of the factory.
func NewTransactionFactory() TransactionFactory {
	return TransactionFactory{}
}

// Deserialize implements serde.Factory. It returns the signed transaction
// deserialized if appropriate, otherwise an error.
func (f TransactionFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	format := signedFormats.Get(ctx.GetFormat())

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode signed transaction: %v", err)
	}

	return msg, nil
}

// TransactionOf returns the signed transaction deserialized from the data.
func (f TransactionFactory) TransactionOf(ctx serde.Context, data []byte) (SignedTransaction, error) {
	msg, err := f.Deserialize(ctx, data)
	if err != nil {
		return SignedTransaction{}, err
	}

	stx, ok := msg.(SignedTransaction)
	if !ok {
		return SignedTransaction{}, xerrors.Errorf("invalid transaction of type '%T'", msg)
	}

	return stx, nil
}

// SignatureVerificationError is returned when a present signature does not
// verify against its claimed key, or when a required key has no signature.
type SignatureVerificationError struct {
	Key crypto.PublicKey
	Err error
}

// Error implements error.
func (e SignatureVerificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("missing signature from '%v'", e.Key)
	}

	return fmt.Sprintf("invalid signature from '%v': %v", e.Key, e.Err)
}

// Unwrap returns the cause of the failure, if any.
func (e SignatureVerificationError) Unwrap() error {
	return e.Err
}

// InsufficientSignaturesError is returned when a transaction is converted with
// the sufficiency check enabled and some required signers have not signed.
type InsufficientSignaturesError struct {
	Missing []crypto.PublicKey
}

// Error implements error.
func (e InsufficientSignaturesError) Error() string {
	return fmt.Sprintf("missing %d required signature(s)", len(e.Missing))
}

// FinalizedBuilderError is returned when a builder is used after it has been
// converted to a signed transaction.
type FinalizedBuilderError struct{}

// Error implements error.
func (e FinalizedBuilderError) Error() string {
	return "builder has already been finalized"
}

func containsKey(keys []crypto.PublicKey, key crypto.PublicKey) bool {
	for _, k := range keys {
		if k.Equal(key) {
			return true
		}
	}

	return false
}

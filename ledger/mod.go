// Package ledger defines the data model shared by every component of the
// bilateral deal protocol.
//
// A ledger is a directed acyclic graph of transactions. Each transaction
// consumes outputs of previous transactions, designated by state references,
// and produces new outputs. The package defines the identity of a participant,
// the references between transactions and the contract states that the
// transactions carry. The transactions themselves are defined in the tx
// subpackage.
package ledger

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Party is a named participant of the ledger, identified by a public key. The
// name is used as the routing address of the participant and the public key as
// its signer identity. A party is immutable once created.
type Party struct {
	name   string
	pubkey crypto.PublicKey
}

// NewParty creates a new party from its name and its public key.
func NewParty(name string, pubkey crypto.PublicKey) Party {
	return Party{
		name:   name,
		pubkey: pubkey,
	}
}

// GetName returns the name of the party.
func (p Party) GetName() string {
	return p.name
}

// GetPublicKey returns the public key of the party.
func (p Party) GetPublicKey() crypto.PublicKey {
	return p.pubkey
}

// Equal returns true when the other party has the same name and the same
// public key.
func (p Party) Equal(other Party) bool {
	return p.name == other.name && p.pubkey.Equal(other.pubkey)
}

// String implements fmt.Stringer. It returns the name of the party.
func (p Party) String() string {
	return p.name
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the party.
func (p Party) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte(p.name))
	if err != nil {
		return xerrors.Errorf("couldn't write name: %v", err)
	}

	buffer, err := p.pubkey.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal public key: %v", err)
	}

	_, err = w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write public key: %v", err)
	}

	return nil
}

// StateRef is a reference to a specific output of a specific previous
// transaction. It chains the transactions into a directed acyclic graph.
type StateRef struct {
	txhash []byte
	index  uint32
}

// NewStateRef creates a reference to the output of the transaction at the
// index.
func NewStateRef(txhash []byte, index uint32) StateRef {
	return StateRef{
		txhash: txhash,
		index:  index,
	}
}

// GetTxHash returns the hash of the transaction that created the state.
func (r StateRef) GetTxHash() []byte {
	return append([]byte{}, r.txhash...)
}

// GetIndex returns the index of the output in the transaction.
func (r StateRef) GetIndex() uint32 {
	return r.index
}

// Equal returns true when the other reference points to the same output.
func (r StateRef) Equal(other StateRef) bool {
	return r.index == other.index && bytes.Equal(r.txhash, other.txhash)
}

// Key returns a unique string representation of the reference, so that it can
// be used as a map key.
func (r StateRef) Key() string {
	buffer := make([]byte, 4, 4+len(r.txhash))
	binary.BigEndian.PutUint32(buffer, r.index)

	return string(append(buffer, r.txhash...))
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the reference.
func (r StateRef) Fingerprint(w io.Writer) error {
	_, err := w.Write(r.txhash)
	if err != nil {
		return xerrors.Errorf("couldn't write hash: %v", err)
	}

	buffer := make([]byte, 4)
	binary.BigEndian.PutUint32(buffer, r.index)

	_, err = w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write index: %v", err)
	}

	return nil
}

// ContractState is a piece of data stored in an output of a transaction. A
// state is immutable: it is updated by consuming the output and producing a
// new one.
type ContractState interface {
	serde.Message
	serde.Fingerprinter
}

// OwnableState is a contract state with a single owner. It can produce the
// outcome of an ownership transfer without knowledge of the concrete state
// implementation.
type OwnableState interface {
	ContractState

	// GetOwner returns the public key of the current owner.
	GetOwner() crypto.PublicKey

	// Move returns the state after a transfer to the new owner, alongside the
	// command that authorizes the transfer. The command requires the signature
	// of the current owner.
	Move(newOwner crypto.PublicKey) (OwnableState, CommandData)
}

// StateAndRef is a state reference paired with the materialized state it
// points to, and the notary in charge of the output. It is never mutated after
// creation.
type StateAndRef struct {
	Ref    StateRef
	State  ContractState
	Notary Party
}

// CommandData is the data model of an authorized action of a transaction.
type CommandData interface {
	serde.Message
	serde.Fingerprinter
}

// Command pairs an authorized action with the public keys that are required to
// sign the transaction for this action to be valid.
type Command struct {
	Value   CommandData
	Signers []crypto.PublicKey
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the command.
func (c Command) Fingerprint(w io.Writer) error {
	err := c.Value.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("couldn't fingerprint value: %v", err)
	}

	for _, signer := range c.Signers {
		buffer, err := signer.MarshalBinary()
		if err != nil {
			return xerrors.Errorf("couldn't marshal signer: %v", err)
		}

		_, err = w.Write(buffer)
		if err != nil {
			return xerrors.Errorf("couldn't write signer: %v", err)
		}
	}

	return nil
}

// TimeWindow is the time interval during which a transaction can be
// notarized.
type TimeWindow struct {
	instant   time.Time
	tolerance time.Duration
}

// NewTimeWindow creates a window of plus or minus the tolerance around the
// instant.
func NewTimeWindow(instant time.Time, tolerance time.Duration) TimeWindow {
	return TimeWindow{
		instant:   instant.UTC(),
		tolerance: tolerance,
	}
}

// GetInstant returns the middle instant of the window.
func (w TimeWindow) GetInstant() time.Time {
	return w.instant
}

// GetTolerance returns the tolerance around the instant.
func (w TimeWindow) GetTolerance() time.Duration {
	return w.tolerance
}

// Contains returns true when the given time lies inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	diff := t.Sub(w.instant)
	if diff < 0 {
		diff = -diff
	}

	return diff <= w.tolerance
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the window.
func (w TimeWindow) Fingerprint(writer io.Writer) error {
	buffer := make([]byte, 16)
	binary.BigEndian.PutUint64(buffer[:8], uint64(w.instant.UnixNano()))
	binary.BigEndian.PutUint64(buffer[8:], uint64(w.tolerance))

	_, err := writer.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write window: %v", err)
	}

	return nil
}

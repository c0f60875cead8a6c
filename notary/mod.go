// Package notary implements the notarization service and its client.
//
// A notary is the uniqueness authority of the states it is assigned to. It
// keeps an index of the state references consumed so far and refuses to sign
// a transaction that consumes a reference already spent by a different
// transaction. Re-notarizing the same transaction is idempotent.
package notary

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"go.dedis.ch/dvp/serde/registry"
	"golang.org/x/xerrors"
)

var msgFormats = registry.NewSimpleRegistry()

// RegisterMessageFormat registers the engine for the provided format.
func RegisterMessageFormat(format serde.Format, engine serde.FormatEngine) {
	msgFormats.Register(format, engine)
}

// RPCName is the name of the notarization endpoint.
const RPCName = "notarize"

// ConflictError is returned when a transaction tries to consume a state
// reference already spent by a different transaction.
type ConflictError struct {
	Ref  ledger.StateRef
	Hash []byte
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("state %v already consumed by transaction %x", e.Ref, e.Hash)
}

// Index keeps track of the consumed state references.
type Index interface {
	// Get returns the hash of the transaction that consumed the reference, if
	// any.
	Get(ref ledger.StateRef) ([]byte, bool, error)

	// Put records that the reference has been consumed by the transaction.
	Put(ref ledger.StateRef, hash []byte) error
}

// InMemoryIndex is a volatile index of consumed references.
//
// - implements notary.Index
type InMemoryIndex struct {
	sync.Mutex
	consumed map[string][]byte
}

// NewInMemoryIndex creates an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		consumed: make(map[string][]byte),
	}
}

// Get implements notary.Index.
func (idx *InMemoryIndex) Get(ref ledger.StateRef) ([]byte, bool, error) {
	idx.Lock()
	defer idx.Unlock()

	hash, found := idx.consumed[ref.Key()]

	return hash, found, nil
}

// Put implements notary.Index.
func (idx *InMemoryIndex) Put(ref ledger.StateRef, hash []byte) error {
	idx.Lock()
	defer idx.Unlock()

	idx.consumed[ref.Key()] = hash

	return nil
}

// Service is the notarization endpoint of a notary.
//
// - implements mino.Handler
type Service struct {
	mino.UnsupportedHandler

	sync.Mutex
	identity    ledger.Party
	signer      crypto.Signer
	hashFactory crypto.HashFactory
	index       Index
	clock       func() time.Time
}

// NewService creates a notarization service signing with the signer under the
// identity.
func NewService(identity ledger.Party, signer crypto.Signer, f crypto.HashFactory, index Index) *Service {
	return &Service{
		identity:    identity,
		signer:      signer,
		hashFactory: f,
		index:       index,
		clock:       time.Now,
	}
}

// Process implements mino.Handler. It verifies and notarizes the transaction
// of the request, or returns the conflicting reference.
func (srv *Service) Process(req mino.Request) (serde.Message, error) {
	in, ok := req.Message.(Request)
	if !ok {
		return nil, xerrors.Errorf("invalid request of type '%T'", req.Message)
	}

	stx := in.GetTransaction()
	wire := stx.GetWire()

	window := wire.GetTimeWindow()
	if window != nil && !window.Contains(srv.clock()) {
		return nil, xerrors.Errorf("transaction window %v does not contain the current time", window)
	}

	err := stx.VerifySignaturesExcept(srv.hashFactory)
	if err != nil {
		return nil, xerrors.Errorf("transaction is not fully signed: %v", err)
	}

	digest, err := wire.Hash(srv.hashFactory)
	if err != nil {
		return nil, xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	srv.Lock()
	defer srv.Unlock()

	for _, ref := range wire.GetInputs() {
		hash, found, err := srv.index.Get(ref)
		if err != nil {
			return nil, xerrors.Errorf("couldn't read index: %v", err)
		}

		if found && !bytes.Equal(hash, digest) {
			return NewConflict(ref, hash), nil
		}
	}

	sig, err := srv.signer.Sign(digest)
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign transaction: %v", err)
	}

	for _, ref := range wire.GetInputs() {
		err = srv.index.Put(ref, digest)
		if err != nil {
			return nil, xerrors.Errorf("couldn't write index: %v", err)
		}
	}

	notarized := tx.NewNotarySignature(srv.signer.GetPublicKey(), sig, srv.identity.GetName())

	return NewSigned(notarized), nil
}

// Request is the message to ask a notary to notarize a transaction.
//
// - implements serde.Message
type Request struct {
	stx tx.SignedTransaction
}

// NewRequest creates a notarization request for the transaction.
func NewRequest(stx tx.SignedTransaction) Request {
	return Request{stx: stx}
}

// GetTransaction returns the transaction to notarize.
func (req Request) GetTransaction() tx.SignedTransaction {
	return req.stx
}

// Serialize implements serde.Message.
func (req Request) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, req)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode request: %v", err)
	}

	return data, nil
}

// Signed is the answer of a notary carrying its signature over the
// transaction.
//
// - implements serde.Message
type Signed struct {
	sig tx.DigitalSignature
}

// NewSigned creates a signed answer with the notary signature.
func NewSigned(sig tx.DigitalSignature) Signed {
	return Signed{sig: sig}
}

// GetSignature returns the notary signature.
func (s Signed) GetSignature() tx.DigitalSignature {
	return s.sig
}

// Serialize implements serde.Message.
func (s Signed) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, s)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode answer: %v", err)
	}

	return data, nil
}

// Conflict is the answer of a notary refusing to sign because a reference is
// already consumed.
//
// - implements serde.Message
type Conflict struct {
	ref  ledger.StateRef
	hash []byte
}

// NewConflict creates a conflict answer for the reference consumed by the
// transaction with the hash.
func NewConflict(ref ledger.StateRef, hash []byte) Conflict {
	return Conflict{ref: ref, hash: hash}
}

// GetRef returns the conflicting reference.
func (c Conflict) GetRef() ledger.StateRef {
	return c.ref
}

// GetHash returns the hash of the transaction that consumed the reference.
func (c Conflict) GetHash() []byte {
	return append([]byte{}, c.hash...)
}

// Serialize implements serde.Message.
func (c Conflict) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, c)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode answer: %v", err)
	}

	return data, nil
}

// MessageFactory is a factory to deserialize the notary messages.
//
// - implements serde.Factory
type MessageFactory struct{}

// Deserialize implements serde.Factory.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	format := msgFormats.Get(ctx.GetFormat())

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode message: %v", err)
	}

	return msg, nil
}

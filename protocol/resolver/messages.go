package resolver

import (
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

// Request is the message to ask a peer for a transaction.
//
// - implements serde.Message
type Request struct {
	hash []byte
}

// NewRequest creates a request for the transaction with the hash.
func NewRequest(hash []byte) Request {
	return Request{hash: hash}
}

// GetHash returns the hash of the requested transaction.
func (req Request) GetHash() []byte {
	return append([]byte{}, req.hash...)
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

// Found is the answer carrying the requested transaction.
//
// - implements serde.Message
type Found struct {
	stx tx.SignedTransaction
}

// NewFound creates an answer with the transaction.
func NewFound(stx tx.SignedTransaction) Found {
	return Found{stx: stx}
}

// GetTransaction returns the transaction.
func (f Found) GetTransaction() tx.SignedTransaction {
	return f.stx
}

// Serialize implements serde.Message.
func (f Found) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, f)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode answer: %v", err)
	}

	return data, nil
}

// NotFound is the answer when the peer does not have the transaction.
//
// - implements serde.Message
type NotFound struct {
	hash []byte
}

// NewNotFound creates an answer for the missing transaction.
func NewNotFound(hash []byte) NotFound {
	return NotFound{hash: hash}
}

// GetHash returns the hash of the missing transaction.
func (n NotFound) GetHash() []byte {
	return append([]byte{}, n.hash...)
}

// Serialize implements serde.Message.
func (n NotFound) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, n)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode answer: %v", err)
	}

	return data, nil
}

// MessageFactory is a factory to deserialize the resolution messages.
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

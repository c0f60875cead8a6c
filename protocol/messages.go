package protocol

import (
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

// Handshake is the message opening a session. It carries the identity of the
// primary and a flow-specific payload describing the terms.
//
// - implements serde.Message
type Handshake struct {
	sender  ledger.Party
	payload serde.Message
}

// NewHandshake creates a handshake from the sender with the payload.
func NewHandshake(sender ledger.Party, payload serde.Message) Handshake {
	return Handshake{sender: sender, payload: payload}
}

// GetSender returns the party that opened the session.
func (h Handshake) GetSender() ledger.Party {
	return h.sender
}

// GetPayload returns the flow-specific terms.
func (h Handshake) GetPayload() serde.Message {
	return h.payload
}

// Serialize implements serde.Message.
func (h Handshake) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, h)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode handshake: %v", err)
	}

	return data, nil
}

// Proposal is the partially signed transaction the secondary sends back for
// the primary to verify and counter-sign.
//
// - implements serde.Message
type Proposal struct {
	stx tx.SignedTransaction
}

// NewProposal creates a proposal for the transaction.
func NewProposal(stx tx.SignedTransaction) Proposal {
	return Proposal{stx: stx}
}

// GetTransaction returns the proposed transaction.
func (p Proposal) GetTransaction() tx.SignedTransaction {
	return p.stx
}

// Serialize implements serde.Message.
func (p Proposal) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, p)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode proposal: %v", err)
	}

	return data, nil
}

// SignaturesMessage carries the signatures missing from a proposal, including
// the notary one.
//
// - implements serde.Message
type SignaturesMessage struct {
	sigs []tx.DigitalSignature
}

// NewSignaturesMessage creates a message with the signatures.
func NewSignaturesMessage(sigs ...tx.DigitalSignature) SignaturesMessage {
	return SignaturesMessage{sigs: sigs}
}

// GetSignatures returns the signatures.
func (m SignaturesMessage) GetSignatures() []tx.DigitalSignature {
	return append([]tx.DigitalSignature{}, m.sigs...)
}

// Serialize implements serde.Message.
func (m SignaturesMessage) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode signatures: %v", err)
	}

	return data, nil
}

// Reject is the message ending a session because a participant refuses the
// terms.
//
// - implements serde.Message
type Reject struct {
	reason string
}

// NewReject creates a rejection with the reason.
func NewReject(reason string) Reject {
	return Reject{reason: reason}
}

// GetReason returns the reason of the rejection.
func (r Reject) GetReason() string {
	return r.reason
}

// Serialize implements serde.Message.
func (r Reject) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, r)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode rejection: %v", err)
	}

	return data, nil
}

// MessageFactory is a factory to deserialize the session messages.
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

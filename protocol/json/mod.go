// Package json implements the JSON formats of the session messages.
package json

import (
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/ledger/tx"
	txjson "go.dedis.ch/dvp/ledger/tx/json"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	protocol.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// HandshakeJSON is the JSON message of a handshake.
type HandshakeJSON struct {
	Sender  ljson.Party
	Payload ljson.Message
}

// ProposalJSON is the JSON message of a proposal.
type ProposalJSON struct {
	Tx txjson.SignedTransaction
}

// SignaturesJSON is the JSON message of a signature set.
type SignaturesJSON struct {
	Signatures []txjson.Signature
}

// RejectJSON is the JSON message of a rejection.
type RejectJSON struct {
	Reason string
}

// MessageJSON is the JSON message wrapping the session messages.
type MessageJSON struct {
	Handshake  *HandshakeJSON  `json:",omitempty"`
	Proposal   *ProposalJSON   `json:",omitempty"`
	Signatures *SignaturesJSON `json:",omitempty"`
	Reject     *RejectJSON     `json:",omitempty"`
}

// msgFormat is the JSON engine of the session messages.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case protocol.Handshake:
		sender, err := ljson.EncodeParty(in.GetSender())
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode sender: %v", err)
		}

		payload, err := ljson.EncodeMessage(ctx, in.GetPayload())
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode payload: %v", err)
		}

		m.Handshake = &HandshakeJSON{Sender: sender, Payload: payload}
	case protocol.Proposal:
		stx, err := encodeTx(ctx, in)
		if err != nil {
			return nil, err
		}

		m.Proposal = &ProposalJSON{Tx: stx}
	case protocol.SignaturesMessage:
		sigs := make([]txjson.Signature, 0)
		for _, sig := range in.GetSignatures() {
			sm, err := txjson.EncodeSignature(sig)
			if err != nil {
				return nil, xerrors.Errorf("couldn't encode signature: %v", err)
			}

			sigs = append(sigs, sm)
		}

		m.Signatures = &SignaturesJSON{Signatures: sigs}
	case protocol.Reject:
		m.Reject = &RejectJSON{Reason: in.GetReason()}
	default:
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the message from the
// data if appropriate, otherwise it returns an error.
func (f msgFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := MessageJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal message: %v", err)
	}

	switch {
	case m.Handshake != nil:
		sender, err := ljson.DecodeParty(m.Handshake.Sender)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode sender: %v", err)
		}

		payload, err := ljson.DecodeMessage(ctx, m.Handshake.Payload)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode payload: %v", err)
		}

		return protocol.NewHandshake(sender, payload), nil
	case m.Proposal != nil:
		stx, err := decodeTx(ctx, m.Proposal.Tx)
		if err != nil {
			return nil, err
		}

		return protocol.NewProposal(stx), nil
	case m.Signatures != nil:
		sigs := make([]tx.DigitalSignature, len(m.Signatures.Signatures))
		for i, sm := range m.Signatures.Signatures {
			sigs[i], err = txjson.DecodeSignature(sm)
			if err != nil {
				return nil, xerrors.Errorf("couldn't decode signature: %v", err)
			}
		}

		return protocol.NewSignaturesMessage(sigs...), nil
	case m.Reject != nil:
		return protocol.NewReject(m.Reject.Reason), nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

func encodeTx(ctx serde.Context, p protocol.Proposal) (txjson.SignedTransaction, error) {
	stx := p.GetTransaction()

	wire, err := txjson.EncodeWire(ctx, stx.GetWire())
	if err != nil {
		return txjson.SignedTransaction{}, xerrors.Errorf("couldn't encode wire: %v", err)
	}

	sigs := make([]txjson.Signature, 0)
	for _, sig := range stx.GetSignatures() {
		sm, err := txjson.EncodeSignature(sig)
		if err != nil {
			return txjson.SignedTransaction{}, xerrors.Errorf("couldn't encode signature: %v", err)
		}

		sigs = append(sigs, sm)
	}

	return txjson.SignedTransaction{Wire: wire, Signatures: sigs}, nil
}

func decodeTx(ctx serde.Context, m txjson.SignedTransaction) (tx.SignedTransaction, error) {
	wire, err := txjson.DecodeWire(ctx, m.Wire)
	if err != nil {
		return tx.SignedTransaction{}, xerrors.Errorf("couldn't decode wire: %v", err)
	}

	sigs := make([]tx.DigitalSignature, len(m.Signatures))
	for i, sm := range m.Signatures {
		sigs[i], err = txjson.DecodeSignature(sm)
		if err != nil {
			return tx.SignedTransaction{}, xerrors.Errorf("couldn't decode signature: %v", err)
		}
	}

	return tx.NewSignedTransaction(wire, sigs...)
}

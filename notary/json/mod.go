// Package json implements the JSON formats of the notary messages.
package json

import (
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/ledger/tx"
	txjson "go.dedis.ch/dvp/ledger/tx/json"
	"go.dedis.ch/dvp/notary"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	notary.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// RequestJSON is the JSON message of a notarization request.
type RequestJSON struct {
	Tx []byte
}

// SignedJSON is the JSON message of a notary signature answer.
type SignedJSON struct {
	Signature txjson.Signature
}

// ConflictJSON is the JSON message of a notary conflict answer.
type ConflictJSON struct {
	Ref  ljson.StateRef
	Hash []byte
}

// MessageJSON is the JSON message wrapping the notary messages.
type MessageJSON struct {
	Request  *RequestJSON  `json:",omitempty"`
	Signed   *SignedJSON   `json:",omitempty"`
	Conflict *ConflictJSON `json:",omitempty"`
}

// msgFormat is the JSON engine of the notary messages.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case notary.Request:
		data, err := in.GetTransaction().Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("couldn't serialize transaction: %v", err)
		}

		m.Request = &RequestJSON{Tx: data}
	case notary.Signed:
		sig, err := txjson.EncodeSignature(in.GetSignature())
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode signature: %v", err)
		}

		m.Signed = &SignedJSON{Signature: sig}
	case notary.Conflict:
		m.Conflict = &ConflictJSON{
			Ref:  ljson.EncodeRef(in.GetRef()),
			Hash: in.GetHash(),
		}
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
	case m.Request != nil:
		stx, err := tx.NewTransactionFactory().TransactionOf(ctx, m.Request.Tx)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode transaction: %v", err)
		}

		return notary.NewRequest(stx), nil
	case m.Signed != nil:
		sig, err := txjson.DecodeSignature(m.Signed.Signature)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode signature: %v", err)
		}

		return notary.NewSigned(sig), nil
	case m.Conflict != nil:
		return notary.NewConflict(ljson.DecodeRef(m.Conflict.Ref), m.Conflict.Hash), nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

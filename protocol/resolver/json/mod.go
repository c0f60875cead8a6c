// Package json implements the JSON formats of the resolution messages.
package json

import (
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/protocol/resolver"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	resolver.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// RequestJSON is the JSON message of a resolution request.
type RequestJSON struct {
	Hash []byte
}

// FoundJSON is the JSON message of a successful resolution.
type FoundJSON struct {
	Tx []byte
}

// NotFoundJSON is the JSON message of a failed resolution.
type NotFoundJSON struct {
	Hash []byte
}

// MessageJSON is the JSON message wrapping the resolution messages.
type MessageJSON struct {
	Request  *RequestJSON  `json:",omitempty"`
	Found    *FoundJSON    `json:",omitempty"`
	NotFound *NotFoundJSON `json:",omitempty"`
}

// msgFormat is the JSON engine of the resolution messages.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case resolver.Request:
		m.Request = &RequestJSON{Hash: in.GetHash()}
	case resolver.Found:
		data, err := in.GetTransaction().Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("couldn't serialize transaction: %v", err)
		}

		m.Found = &FoundJSON{Tx: data}
	case resolver.NotFound:
		m.NotFound = &NotFoundJSON{Hash: in.GetHash()}
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
		return resolver.NewRequest(m.Request.Hash), nil
	case m.Found != nil:
		stx, err := tx.NewTransactionFactory().TransactionOf(ctx, m.Found.Tx)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode transaction: %v", err)
		}

		return resolver.NewFound(stx), nil
	case m.NotFound != nil:
		return resolver.NewNotFound(m.NotFound.Hash), nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

// Package json implements the JSON formats of the trade messages.
package json

import (
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/ledger"
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/protocol/trade"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	trade.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// TermsJSON is the JSON message of the terms of a trade.
type TermsJSON struct {
	AssetRef    ljson.StateRef
	AssetState  ljson.Message
	AssetNotary ljson.Party
	Quantity    uint64
	Currency    string
	PayTo       []byte
}

// RecordedJSON is the JSON message of a settled trade copy.
type RecordedJSON struct {
	Tx []byte
}

// AckJSON is the JSON message of an observer acknowledgment.
type AckJSON struct{}

// MessageJSON is the JSON message wrapping the trade messages.
type MessageJSON struct {
	Terms    *TermsJSON    `json:",omitempty"`
	Recorded *RecordedJSON `json:",omitempty"`
	Ack      *AckJSON      `json:",omitempty"`
}

// msgFormat is the JSON engine of the trade messages.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case trade.Terms:
		terms, err := encodeTerms(ctx, in)
		if err != nil {
			return nil, err
		}

		m.Terms = terms
	case trade.Recorded:
		data, err := in.GetTransaction().Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("couldn't serialize transaction: %v", err)
		}

		m.Recorded = &RecordedJSON{Tx: data}
	case trade.Ack:
		m.Ack = &AckJSON{}
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
	case m.Terms != nil:
		return decodeTerms(ctx, m.Terms)
	case m.Recorded != nil:
		stx, err := tx.NewTransactionFactory().TransactionOf(ctx, m.Recorded.Tx)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode transaction: %v", err)
		}

		return trade.NewRecorded(stx), nil
	case m.Ack != nil:
		return trade.Ack{}, nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

func encodeTerms(ctx serde.Context, terms trade.Terms) (*TermsJSON, error) {
	asset := terms.GetAsset()

	state, err := ljson.EncodeMessage(ctx, asset.State)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode state: %v", err)
	}

	notary, err := ljson.EncodeParty(asset.Notary)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode notary: %v", err)
	}

	payTo, err := ljson.EncodeKey(terms.GetPayTo())
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode payment key: %v", err)
	}

	price := terms.GetPrice()

	return &TermsJSON{
		AssetRef:    ljson.EncodeRef(asset.Ref),
		AssetState:  state,
		AssetNotary: notary,
		Quantity:    price.Quantity,
		Currency:    price.Currency,
		PayTo:       payTo,
	}, nil
}

func decodeTerms(ctx serde.Context, m *TermsJSON) (trade.Terms, error) {
	state, err := ljson.DecodeMessage(ctx, m.AssetState)
	if err != nil {
		return trade.Terms{}, xerrors.Errorf("couldn't decode state: %v", err)
	}

	contractState, ok := state.(ledger.ContractState)
	if !ok {
		return trade.Terms{}, xerrors.Errorf("invalid state of type '%T'", state)
	}

	notary, err := ljson.DecodeParty(m.AssetNotary)
	if err != nil {
		return trade.Terms{}, xerrors.Errorf("couldn't decode notary: %v", err)
	}

	payTo, err := ljson.DecodeKey(m.PayTo)
	if err != nil {
		return trade.Terms{}, xerrors.Errorf("couldn't decode payment key: %v", err)
	}

	asset := ledger.StateAndRef{
		Ref:    ljson.DecodeRef(m.AssetRef),
		State:  contractState,
		Notary: notary,
	}

	price := cash.NewAmount(m.Quantity, m.Currency)

	return trade.NewTerms(asset, price, payTo), nil
}

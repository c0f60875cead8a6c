// Package json implements the JSON format for the cash messages.
package json

import (
	"go.dedis.ch/dvp/contracts/cash"
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	cash.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// StateJSON is the JSON message of a cash state.
type StateJSON struct {
	Quantity uint64
	Currency string
	Owner    []byte
}

// CommandJSON is the JSON message of a cash command.
type CommandJSON struct{}

// MessageJSON is the JSON message that wraps the different cash messages.
type MessageJSON struct {
	State *StateJSON   `json:",omitempty"`
	Spend *CommandJSON `json:",omitempty"`
	Issue *CommandJSON `json:",omitempty"`
}

// msgFormat is the engine to encode and decode the cash messages in JSON
// format.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case cash.State:
		owner, err := ljson.EncodeKey(in.GetOwner())
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode owner: %v", err)
		}

		m.State = &StateJSON{
			Quantity: in.GetAmount().Quantity,
			Currency: in.GetAmount().Currency,
			Owner:    owner,
		}
	case cash.Spend:
		m.Spend = &CommandJSON{}
	case cash.Issue:
		m.Issue = &CommandJSON{}
	default:
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the message from the data
// if appropriate, otherwise it returns an error.
func (f msgFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := MessageJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal message: %v", err)
	}

	switch {
	case m.State != nil:
		owner, err := ljson.DecodeKey(m.State.Owner)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode owner: %v", err)
		}

		amount := cash.NewAmount(m.State.Quantity, m.State.Currency)

		return cash.NewState(amount, owner), nil
	case m.Spend != nil:
		return cash.Spend{}, nil
	case m.Issue != nil:
		return cash.Issue{}, nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

// Package json implements the JSON formats of the asset messages.
package json

import (
	"go.dedis.ch/dvp/contracts/asset"
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	asset.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// StateJSON is the JSON message of an asset state.
type StateJSON struct {
	Name  string
	Owner []byte
}

// CommandJSON is the JSON message of an asset command.
type CommandJSON struct{}

// MessageJSON is the JSON message wrapping the asset messages.
type MessageJSON struct {
	State *StateJSON   `json:",omitempty"`
	Move  *CommandJSON `json:",omitempty"`
	Issue *CommandJSON `json:",omitempty"`
}

// msgFormat is the JSON engine of the asset messages.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case asset.State:
		owner, err := ljson.EncodeKey(in.GetOwner())
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode owner: %v", err)
		}

		m.State = &StateJSON{
			Name:  in.GetName(),
			Owner: owner,
		}
	case asset.Move:
		m.Move = &CommandJSON{}
	case asset.Issue:
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

// Decode implements serde.FormatEngine.
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

		return asset.NewState(m.State.Name, owner), nil
	case m.Move != nil:
		return asset.Move{}, nil
	case m.Issue != nil:
		return asset.Issue{}, nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

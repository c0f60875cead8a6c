// Package json implements the JSON formats of the deal session payloads.
package json

import (
	"time"

	"go.dedis.ch/dvp/contracts/deal"
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/protocol/dealflow"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	dealflow.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// OfferJSON is the JSON message of a deal offer.
type OfferJSON struct {
	Deal   ljson.Message
	Notary ljson.Party
}

// FixingRequestJSON is the JSON message of a fixing request.
type FixingRequestJSON struct {
	Ref      ljson.StateRef
	Name     string
	Date     int64
	ValueBps int64
}

// MessageJSON is the JSON message wrapping the deal session payloads.
type MessageJSON struct {
	Offer         *OfferJSON         `json:",omitempty"`
	FixingRequest *FixingRequestJSON `json:",omitempty"`
}

// msgFormat is the JSON engine of the deal session payloads.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case dealflow.Offer:
		d, err := ljson.EncodeMessage(ctx, in.GetDeal())
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode deal: %v", err)
		}

		notary, err := ljson.EncodeParty(in.GetNotary())
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode notary: %v", err)
		}

		m.Offer = &OfferJSON{Deal: d, Notary: notary}
	case dealflow.FixingRequest:
		fix := in.GetFix()

		m.FixingRequest = &FixingRequestJSON{
			Ref:      ljson.EncodeRef(in.GetRef()),
			Name:     fix.Of.Name,
			Date:     fix.Of.Date.UnixNano(),
			ValueBps: fix.ValueBps,
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
	case m.Offer != nil:
		msg, err := ljson.DecodeMessage(ctx, m.Offer.Deal)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode deal: %v", err)
		}

		d, ok := msg.(deal.State)
		if !ok {
			return nil, xerrors.Errorf("invalid deal of type '%T'", msg)
		}

		notary, err := ljson.DecodeParty(m.Offer.Notary)
		if err != nil {
			return nil, xerrors.Errorf("couldn't decode notary: %v", err)
		}

		return dealflow.NewOffer(d, notary), nil
	case m.FixingRequest != nil:
		fix := deal.Fix{
			Of: deal.FixOf{
				Name: m.FixingRequest.Name,
				Date: time.Unix(0, m.FixingRequest.Date),
			},
			ValueBps: m.FixingRequest.ValueBps,
		}

		return dealflow.NewFixingRequest(ljson.DecodeRef(m.FixingRequest.Ref), fix), nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

package dealflow

import (
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/serde"
	"go.dedis.ch/dvp/serde/registry"
	"golang.org/x/xerrors"
)

var msgFormats = registry.NewSimpleRegistry()

// RegisterMessageFormat registers the engine for the provided format.
func RegisterMessageFormat(format serde.Format, engine serde.FormatEngine) {
	msgFormats.Register(format, engine)
}

func init() {
	serde.RegisterMessage(Offer{}, MessageFactory{})
	serde.RegisterMessage(FixingRequest{}, MessageFactory{})
}

// Offer is the handshake payload proposing a deal. It carries the agreement
// to create and the notary that will control its evolution.
//
// - implements serde.Message
type Offer struct {
	deal   deal.State
	notary ledger.Party
}

// NewOffer creates an offer for the deal under the notary.
func NewOffer(d deal.State, notary ledger.Party) Offer {
	return Offer{deal: d, notary: notary}
}

// GetDeal returns the proposed agreement.
func (o Offer) GetDeal() deal.State {
	return o.deal
}

// GetNotary returns the notary of the deal.
func (o Offer) GetNotary() ledger.Party {
	return o.notary
}

// Serialize implements serde.Message.
func (o Offer) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, o)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode offer: %v", err)
	}

	return data, nil
}

// FixingRequest is the handshake payload asking to apply a fix to the deal
// referenced.
//
// - implements serde.Message
type FixingRequest struct {
	ref ledger.StateRef
	fix deal.Fix
}

// NewFixingRequest creates a request to apply the fix to the deal at the
// reference.
func NewFixingRequest(ref ledger.StateRef, fix deal.Fix) FixingRequest {
	return FixingRequest{ref: ref, fix: fix}
}

// GetRef returns the reference of the current deal state.
func (req FixingRequest) GetRef() ledger.StateRef {
	return req.ref
}

// GetFix returns the observation to apply.
func (req FixingRequest) GetFix() deal.Fix {
	return req.fix
}

// Serialize implements serde.Message.
func (req FixingRequest) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, req)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode request: %v", err)
	}

	return data, nil
}

// MessageFactory is a factory to deserialize the deal session payloads.
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

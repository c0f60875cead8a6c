package oracle

import (
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Request is the message to query an observation from the oracle.
//
// - implements serde.Message
type Request struct {
	of deal.FixOf
}

// NewRequest creates a query for the observation.
func NewRequest(of deal.FixOf) Request {
	return Request{of: of}
}

// GetFixOf returns the identifier of the queried observation.
func (req Request) GetFixOf() deal.FixOf {
	return req.of
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

// Answer is the message carrying the observation of the oracle.
//
// - implements serde.Message
type Answer struct {
	fix deal.Fix
}

// NewAnswer creates an answer carrying the observation.
func NewAnswer(fix deal.Fix) Answer {
	return Answer{fix: fix}
}

// GetFix returns the observation.
func (a Answer) GetFix() deal.Fix {
	return a.fix
}

// Serialize implements serde.Message.
func (a Answer) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, a)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode answer: %v", err)
	}

	return data, nil
}

// MessageFactory is a factory to deserialize the oracle messages.
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

// Package trade implements the delivery versus payment flow.
//
// A seller offers an asset at a price and opens a session with a buyer. The
// buyer assembles a transaction that moves the asset to a fresh key of its
// own and pays the price to the seller, then the shared state machine
// completes the atomic settlement.
package trade

import (
	"fmt"

	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/serde"
	"go.dedis.ch/dvp/serde/registry"
	"golang.org/x/xerrors"
)

// RPCName is the name of the trade session endpoint.
const RPCName = "trade"

// ObserveRPCName is the name of the endpoint where observers receive the
// settled trades.
const ObserveRPCName = "trade-observe"

var msgFormats = registry.NewSimpleRegistry()

// RegisterMessageFormat registers the engine for the provided format.
func RegisterMessageFormat(format serde.Format, engine serde.FormatEngine) {
	msgFormats.Register(format, engine)
}

func init() {
	serde.RegisterMessage(Terms{}, MessageFactory{})
	serde.RegisterMessage(Recorded{}, MessageFactory{})
	serde.RegisterMessage(Ack{}, MessageFactory{})
}

// PriceMismatchError is returned when a proposal does not pay the offered
// price to the seller.
type PriceMismatchError struct {
	Expected cash.Amount
	Actual   cash.Amount
}

func (e PriceMismatchError) Error() string {
	return fmt.Sprintf("proposal pays %v instead of %v", e.Actual, e.Expected)
}

// AssetMismatchError is returned when a proposal does not consume the offered
// asset.
type AssetMismatchError struct {
	Expected ledger.StateRef
}

func (e AssetMismatchError) Error() string {
	return fmt.Sprintf("proposal does not consume the offered asset %v", e.Expected)
}

// Terms is the handshake payload of a trade. It carries the asset offered,
// its price and the key the payment must go to.
//
// - implements serde.Message
type Terms struct {
	asset ledger.StateAndRef
	price cash.Amount
	payTo crypto.PublicKey
}

// NewTerms creates the terms of a trade.
func NewTerms(asset ledger.StateAndRef, price cash.Amount, payTo crypto.PublicKey) Terms {
	return Terms{
		asset: asset,
		price: price,
		payTo: payTo,
	}
}

// GetAsset returns the asset offered.
func (t Terms) GetAsset() ledger.StateAndRef {
	return t.asset
}

// GetPrice returns the price asked.
func (t Terms) GetPrice() cash.Amount {
	return t.price
}

// GetPayTo returns the key the payment must go to.
func (t Terms) GetPayTo() crypto.PublicKey {
	return t.payTo
}

// Serialize implements serde.Message.
func (t Terms) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, t)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode terms: %v", err)
	}

	return data, nil
}

// Recorded is the message copying a settled trade to an observer.
//
// - implements serde.Message
type Recorded struct {
	stx tx.SignedTransaction
}

// NewRecorded creates a copy message for the transaction.
func NewRecorded(stx tx.SignedTransaction) Recorded {
	return Recorded{stx: stx}
}

// GetTransaction returns the settled transaction.
func (r Recorded) GetTransaction() tx.SignedTransaction {
	return r.stx
}

// Serialize implements serde.Message.
func (r Recorded) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, r)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode record: %v", err)
	}

	return data, nil
}

// Ack is the answer of an observer that recorded a copy.
//
// - implements serde.Message
type Ack struct{}

// Serialize implements serde.Message.
func (a Ack) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, a)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode ack: %v", err)
	}

	return data, nil
}

// MessageFactory is a factory to deserialize the trade messages.
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

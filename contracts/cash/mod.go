// Package cash implements a fungible cash state.
//
// A cash state assigns an amount of a currency to an owner key. Spending cash
// consumes some states of the payer and produces a state for the payee,
// alongside a change state when the consumed amount exceeds the payment.
package cash

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
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
	serde.RegisterMessage(State{}, MessageFactory{})
	serde.RegisterMessage(Spend{}, MessageFactory{})
	serde.RegisterMessage(Issue{}, MessageFactory{})
}

// Amount is a quantity of a given currency.
type Amount struct {
	Quantity uint64
	Currency string
}

// NewAmount creates an amount of the quantity in the currency.
func NewAmount(quantity uint64, currency string) Amount {
	return Amount{
		Quantity: quantity,
		Currency: currency,
	}
}

// Add returns the sum of both amounts. It returns an error when the
// currencies differ.
func (a Amount) Add(other Amount) (Amount, error) {
	if a.Currency != other.Currency {
		return a, xerrors.Errorf("mismatching currencies '%s' and '%s'",
			a.Currency, other.Currency)
	}

	return Amount{Quantity: a.Quantity + other.Quantity, Currency: a.Currency}, nil
}

// Equal returns true when both amounts have the same quantity of the same
// currency.
func (a Amount) Equal(other Amount) bool {
	return a.Quantity == other.Quantity && a.Currency == other.Currency
}

// String implements fmt.Stringer. It returns a human readable amount.
func (a Amount) String() string {
	return fmt.Sprintf("%d %s", a.Quantity, a.Currency)
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the amount.
func (a Amount) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, a.Quantity)

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write quantity: %v", err)
	}

	_, err = w.Write([]byte(a.Currency))
	if err != nil {
		return xerrors.Errorf("couldn't write currency: %v", err)
	}

	return nil
}

// State is a cash state owned by a public key.
//
// - implements ledger.ContractState
type State struct {
	amount Amount
	owner  crypto.PublicKey
}

// NewState creates a cash state of the amount for the owner.
func NewState(amount Amount, owner crypto.PublicKey) State {
	return State{
		amount: amount,
		owner:  owner,
	}
}

// GetAmount returns the amount of the state.
func (s State) GetAmount() Amount {
	return s.amount
}

// GetOwner returns the owner key of the state.
func (s State) GetOwner() crypto.PublicKey {
	return s.owner
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the state.
func (s State) Fingerprint(w io.Writer) error {
	err := s.amount.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("couldn't fingerprint amount: %v", err)
	}

	key, err := s.owner.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("couldn't marshal owner: %v", err)
	}

	_, err = w.Write(key)
	if err != nil {
		return xerrors.Errorf("couldn't write owner: %v", err)
	}

	return nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// state.
func (s State) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, s)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode state: %v", err)
	}

	return data, nil
}

// Spend is the command to move cash between owners. It requires the signature
// of every owner of the consumed cash states.
//
// - implements ledger.CommandData
type Spend struct{}

// Fingerprint implements serde.Fingerprinter.
func (Spend) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte("cash:spend"))
	return err
}

// Serialize implements serde.Message.
func (c Spend) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, c)
}

// Issue is the command to create cash out of thin air. It requires the
// signature of the issuer.
//
// - implements ledger.CommandData
type Issue struct{}

// Fingerprint implements serde.Fingerprinter.
func (Issue) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte("cash:issue"))
	return err
}

// Serialize implements serde.Message.
func (c Issue) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, c)
}

// MessageFactory is a factory to deserialize the cash states and commands.
//
// - implements serde.Factory
type MessageFactory struct{}

// Deserialize implements serde.Factory. It returns the message deserialized
// if appropriate, otherwise an error.
func (f MessageFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	format := msgFormats.Get(ctx.GetFormat())

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't decode message: %v", err)
	}

	return msg, nil
}

// InsufficientFundsError is returned when the candidate states cannot cover
// the requested amount.
type InsufficientFundsError struct {
	Requested Amount
	Available Amount
}

// Error implements error.
func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %v requested but only %v available",
		e.Requested, e.Available)
}

// GenerateIssue fills the builder with the issuance of the amount to the
// owner.
func GenerateIssue(b *tx.Builder, amount Amount, owner crypto.PublicKey,
	notary ledger.Party, issuer crypto.PublicKey) error {

	err := b.AddOutput(NewState(amount, owner), notary)
	if err != nil {
		return xerrors.Errorf("couldn't add output: %v", err)
	}

	err = b.AddCommand(Issue{}, issuer)
	if err != nil {
		return xerrors.Errorf("couldn't add command: %v", err)
	}

	return nil
}

// GenerateSpend fills the builder with a payment of the amount to the payee,
// consuming some of the candidate states. A change output for the change
// owner is produced when the consumed states exceed the amount. It returns
// the distinct keys that own the consumed states, which are the required
// signers of the spend command.
func GenerateSpend(b *tx.Builder, amount Amount, to crypto.PublicKey,
	candidates []ledger.StateAndRef, changeOwner crypto.PublicKey) ([]crypto.PublicKey, error) {

	gathered := Amount{Currency: amount.Currency}
	owners := make([]crypto.PublicKey, 0)

	var notary ledger.Party

	for _, candidate := range candidates {
		if gathered.Quantity >= amount.Quantity {
			break
		}

		state, ok := candidate.State.(State)
		if !ok || state.amount.Currency != amount.Currency {
			continue
		}

		var err error

		gathered, err = gathered.Add(state.amount)
		if err != nil {
			return nil, xerrors.Errorf("couldn't gather state: %v", err)
		}

		err = b.AddInput(candidate.Ref)
		if err != nil {
			return nil, xerrors.Errorf("couldn't add input: %v", err)
		}

		found := false
		for _, owner := range owners {
			if owner.Equal(state.owner) {
				found = true
				break
			}
		}

		if !found {
			owners = append(owners, state.owner)
		}

		notary = candidate.Notary
	}

	if gathered.Quantity < amount.Quantity {
		return nil, InsufficientFundsError{Requested: amount, Available: gathered}
	}

	err := b.AddOutput(NewState(amount, to), notary)
	if err != nil {
		return nil, xerrors.Errorf("couldn't add output: %v", err)
	}

	if gathered.Quantity > amount.Quantity {
		change := NewAmount(gathered.Quantity-amount.Quantity, amount.Currency)

		err = b.AddOutput(NewState(change, changeOwner), notary)
		if err != nil {
			return nil, xerrors.Errorf("couldn't add change: %v", err)
		}
	}

	err = b.AddCommand(Spend{}, owners...)
	if err != nil {
		return nil, xerrors.Errorf("couldn't add command: %v", err)
	}

	return owners, nil
}

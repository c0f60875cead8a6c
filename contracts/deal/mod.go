// Package deal implements bilateral deal states.
//
// A deal is a contract state shared by two parties that evolves on the
// ledger. The package defines the generic deal abstraction and a concrete
// rate agreement that periodically incorporates a rate observed from an
// oracle.
package deal

import (
	"encoding/binary"
	"io"
	"sort"
	"time"

	"go.dedis.ch/dvp/contracts/cash"
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
	serde.RegisterMessage(RateAgreement{}, MessageFactory{})
	serde.RegisterMessage(Agree{}, MessageFactory{})
	serde.RegisterMessage(Fixing{}, MessageFactory{})
}

// State is a deal between two parties stored on the ledger.
type State interface {
	ledger.ContractState

	// GetName returns the name identifying the deal between its parties.
	GetName() string

	// GetParties returns the two participants of the deal.
	GetParties() []ledger.Party

	// GenerateAgreement fills the builder with the creation of the deal.
	GenerateAgreement(b *tx.Builder, notary ledger.Party) error
}

// FixOf identifies a rate to be observed, by the name of the rate and the
// date of the observation.
type FixOf struct {
	Name string
	Date time.Time
}

// Equal returns true when both identifiers point to the same observation.
func (f FixOf) Equal(other FixOf) bool {
	return f.Name == other.Name && f.Date.Equal(other.Date)
}

// Fix is a rate observation expressed in basis points.
type Fix struct {
	Of       FixOf
	ValueBps int64
}

// Fixable is a deal that requires rates to be fixed over its lifetime.
type Fixable interface {
	State

	// NextFixing returns the identifier of the next rate to observe, or nil
	// when the deal is fully fixed.
	NextFixing() *FixOf

	// GenerateFix fills the builder with the transition that consumes the
	// current deal state and produces it augmented with the fix.
	GenerateFix(b *tx.Builder, current ledger.StateAndRef, fix Fix, notary ledger.Party) error
}

// RateAgreement is a deal paying a fixed rate against a floating rate fixed
// from an oracle at every fixing date.
//
// - implements deal.Fixable
type RateAgreement struct {
	name         string
	parties      []ledger.Party
	notional     cash.Amount
	fixedRateBps int64
	oracleName   string
	fixingDates  []time.Time
	fixes        []Fix
}

// NewRateAgreement creates an unfixed rate agreement between the two parties.
// The fixing dates are sorted chronologically.
func NewRateAgreement(name string, a, b ledger.Party, notional cash.Amount,
	fixedRateBps int64, oracleName string, dates []time.Time) RateAgreement {

	sorted := append([]time.Time{}, dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	return RateAgreement{
		name:         name,
		parties:      []ledger.Party{a, b},
		notional:     notional,
		fixedRateBps: fixedRateBps,
		oracleName:   oracleName,
		fixingDates:  sorted,
	}
}

// NewFixedRateAgreement restores a rate agreement with the fixes already
// applied. It is used by the deserialization.
func NewFixedRateAgreement(name string, parties []ledger.Party, notional cash.Amount,
	fixedRateBps int64, oracleName string, dates []time.Time, fixes []Fix) RateAgreement {

	ra := NewRateAgreement(name, parties[0], parties[1], notional, fixedRateBps, oracleName, dates)
	ra.fixes = append([]Fix{}, fixes...)

	return ra
}

// GetName returns the name of the agreement.
func (ra RateAgreement) GetName() string {
	return ra.name
}

// GetParties implements deal.State. It returns the two participants.
func (ra RateAgreement) GetParties() []ledger.Party {
	return append([]ledger.Party{}, ra.parties...)
}

// GetNotional returns the notional amount of the agreement.
func (ra RateAgreement) GetNotional() cash.Amount {
	return ra.notional
}

// GetFixedRateBps returns the fixed leg rate in basis points.
func (ra RateAgreement) GetFixedRateBps() int64 {
	return ra.fixedRateBps
}

// GetOracleName returns the name of the rate the floating leg observes.
func (ra RateAgreement) GetOracleName() string {
	return ra.oracleName
}

// GetFixingDates returns the fixing dates in chronological order.
func (ra RateAgreement) GetFixingDates() []time.Time {
	return append([]time.Time{}, ra.fixingDates...)
}

// GetFixes returns the fixes applied so far.
func (ra RateAgreement) GetFixes() []Fix {
	return append([]Fix{}, ra.fixes...)
}

// NextFixing implements deal.Fixable. It returns the identifier of the first
// fixing date without a fix, or nil when the agreement is fully fixed.
func (ra RateAgreement) NextFixing() *FixOf {
	if len(ra.fixes) >= len(ra.fixingDates) {
		return nil
	}

	return &FixOf{
		Name: ra.oracleName,
		Date: ra.fixingDates[len(ra.fixes)],
	}
}

// GenerateAgreement implements deal.State. It fills the builder with the
// creation of the agreement, to be signed by both parties.
func (ra RateAgreement) GenerateAgreement(b *tx.Builder, notary ledger.Party) error {
	err := b.AddOutput(ra, notary)
	if err != nil {
		return xerrors.Errorf("couldn't add output: %v", err)
	}

	err = b.AddCommand(Agree{}, ra.parties[0].GetPublicKey(), ra.parties[1].GetPublicKey())
	if err != nil {
		return xerrors.Errorf("couldn't add command: %v", err)
	}

	return nil
}

// GenerateFix implements deal.Fixable. It fills the builder with the
// transition that applies the fix to the current state of the agreement.
func (ra RateAgreement) GenerateFix(b *tx.Builder, current ledger.StateAndRef,
	fix Fix, notary ledger.Party) error {

	next := ra.NextFixing()
	if next == nil {
		return xerrors.New("agreement is fully fixed")
	}

	if !next.Equal(fix.Of) {
		return xerrors.Errorf("unexpected fix of '%s' at %v",
			fix.Of.Name, fix.Of.Date)
	}

	err := b.AddInput(current.Ref)
	if err != nil {
		return xerrors.Errorf("couldn't add input: %v", err)
	}

	fixed := ra
	fixed.fixes = append(append([]Fix{}, ra.fixes...), fix)

	err = b.AddOutput(fixed, notary)
	if err != nil {
		return xerrors.Errorf("couldn't add output: %v", err)
	}

	err = b.AddCommand(Fixing{}, ra.parties[0].GetPublicKey(), ra.parties[1].GetPublicKey())
	if err != nil {
		return xerrors.Errorf("couldn't add command: %v", err)
	}

	return nil
}

// Fingerprint implements serde.Fingerprinter. It writes a deterministic
// binary representation of the agreement.
func (ra RateAgreement) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte(ra.name))
	if err != nil {
		return xerrors.Errorf("couldn't write name: %v", err)
	}

	for _, party := range ra.parties {
		err = party.Fingerprint(w)
		if err != nil {
			return xerrors.Errorf("couldn't fingerprint party: %v", err)
		}
	}

	err = ra.notional.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("couldn't fingerprint notional: %v", err)
	}

	err = writeInt64(w, ra.fixedRateBps)
	if err != nil {
		return xerrors.Errorf("couldn't write rate: %v", err)
	}

	_, err = w.Write([]byte(ra.oracleName))
	if err != nil {
		return xerrors.Errorf("couldn't write oracle name: %v", err)
	}

	for _, date := range ra.fixingDates {
		err = writeInt64(w, date.UnixNano())
		if err != nil {
			return xerrors.Errorf("couldn't write date: %v", err)
		}
	}

	for _, fix := range ra.fixes {
		err = writeInt64(w, fix.Of.Date.UnixNano())
		if err != nil {
			return xerrors.Errorf("couldn't write fix date: %v", err)
		}

		err = writeInt64(w, fix.ValueBps)
		if err != nil {
			return xerrors.Errorf("couldn't write fix value: %v", err)
		}
	}

	return nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// agreement.
func (ra RateAgreement) Serialize(ctx serde.Context) ([]byte, error) {
	format := msgFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, ra)
	if err != nil {
		return nil, xerrors.Errorf("couldn't encode agreement: %v", err)
	}

	return data, nil
}

func writeInt64(w io.Writer, value int64) error {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, uint64(value))

	_, err := w.Write(buffer)
	return err
}

// Agree is the command to create a deal. It requires the signatures of both
// parties.
//
// - implements ledger.CommandData
type Agree struct{}

// Fingerprint implements serde.Fingerprinter.
func (Agree) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte("deal:agree"))
	return err
}

// Serialize implements serde.Message.
func (c Agree) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, c)
}

// Fixing is the command to apply a fix to a deal. It requires the signatures
// of both parties.
//
// - implements ledger.CommandData
type Fixing struct{}

// Fingerprint implements serde.Fingerprinter.
func (Fixing) Fingerprint(w io.Writer) error {
	_, err := w.Write([]byte("deal:fixing"))
	return err
}

// Serialize implements serde.Message.
func (c Fixing) Serialize(ctx serde.Context) ([]byte, error) {
	return msgFormats.Get(ctx.GetFormat()).Encode(ctx, c)
}

// MessageFactory is a factory to deserialize the deal states and commands.
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

// Package json implements the JSON formats of the deal messages.
package json

import (
	"time"

	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/ledger"
	ljson "go.dedis.ch/dvp/ledger/json"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	deal.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// FixJSON is the JSON message of a rate observation.
type FixJSON struct {
	Name     string
	Date     int64
	ValueBps int64
}

// RateAgreementJSON is the JSON message of a rate agreement.
type RateAgreementJSON struct {
	Name         string
	Parties      []ljson.Party
	Quantity     uint64
	Currency     string
	FixedRateBps int64
	OracleName   string
	FixingDates  []int64
	Fixes        []FixJSON
}

// CommandJSON is the JSON message of a deal command.
type CommandJSON struct{}

// MessageJSON is the JSON message wrapping the deal messages.
type MessageJSON struct {
	RateAgreement *RateAgreementJSON `json:",omitempty"`
	Agree         *CommandJSON       `json:",omitempty"`
	Fixing        *CommandJSON       `json:",omitempty"`
}

// msgFormat is the JSON engine of the deal messages.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case deal.RateAgreement:
		ra, err := encodeAgreement(in)
		if err != nil {
			return nil, err
		}

		m.RateAgreement = ra
	case deal.Agree:
		m.Agree = &CommandJSON{}
	case deal.Fixing:
		m.Fixing = &CommandJSON{}
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
	case m.RateAgreement != nil:
		return decodeAgreement(m.RateAgreement)
	case m.Agree != nil:
		return deal.Agree{}, nil
	case m.Fixing != nil:
		return deal.Fixing{}, nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

func encodeAgreement(ra deal.RateAgreement) (*RateAgreementJSON, error) {
	parties := make([]ljson.Party, 0, 2)
	for _, party := range ra.GetParties() {
		p, err := ljson.EncodeParty(party)
		if err != nil {
			return nil, xerrors.Errorf("couldn't encode party: %v", err)
		}

		parties = append(parties, p)
	}

	dates := make([]int64, 0, len(ra.GetFixingDates()))
	for _, date := range ra.GetFixingDates() {
		dates = append(dates, date.UnixNano())
	}

	fixes := make([]FixJSON, 0, len(ra.GetFixes()))
	for _, fix := range ra.GetFixes() {
		fixes = append(fixes, FixJSON{
			Name:     fix.Of.Name,
			Date:     fix.Of.Date.UnixNano(),
			ValueBps: fix.ValueBps,
		})
	}

	notional := ra.GetNotional()

	return &RateAgreementJSON{
		Name:         ra.GetName(),
		Parties:      parties,
		Quantity:     notional.Quantity,
		Currency:     notional.Currency,
		FixedRateBps: ra.GetFixedRateBps(),
		OracleName:   ra.GetOracleName(),
		FixingDates:  dates,
		Fixes:        fixes,
	}, nil
}

func decodeAgreement(m *RateAgreementJSON) (deal.RateAgreement, error) {
	if len(m.Parties) != 2 {
		return deal.RateAgreement{}, xerrors.Errorf("expected 2 parties, found %d", len(m.Parties))
	}

	parties := make([]ledger.Party, 0, 2)
	for _, p := range m.Parties {
		party, err := ljson.DecodeParty(p)
		if err != nil {
			return deal.RateAgreement{}, xerrors.Errorf("couldn't decode party: %v", err)
		}

		parties = append(parties, party)
	}

	dates := make([]time.Time, 0, len(m.FixingDates))
	for _, date := range m.FixingDates {
		dates = append(dates, time.Unix(0, date))
	}

	fixes := make([]deal.Fix, 0, len(m.Fixes))
	for _, fix := range m.Fixes {
		fixes = append(fixes, deal.Fix{
			Of: deal.FixOf{
				Name: fix.Name,
				Date: time.Unix(0, fix.Date),
			},
			ValueBps: fix.ValueBps,
		})
	}

	notional := cash.NewAmount(m.Quantity, m.Currency)

	ra := deal.NewFixedRateAgreement(m.Name, parties, notional,
		m.FixedRateBps, m.OracleName, dates, fixes)

	return ra, nil
}

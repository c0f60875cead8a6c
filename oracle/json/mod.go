// Package json implements the JSON formats of the oracle messages.
package json

import (
	"time"

	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/oracle"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

func init() {
	oracle.RegisterMessageFormat(serde.FormatJSON, msgFormat{})
}

// RequestJSON is the JSON message of an oracle query.
type RequestJSON struct {
	Name string
	Date int64
}

// AnswerJSON is the JSON message of an oracle observation.
type AnswerJSON struct {
	Name     string
	Date     int64
	ValueBps int64
}

// MessageJSON is the JSON message wrapping the oracle messages.
type MessageJSON struct {
	Request *RequestJSON `json:",omitempty"`
	Answer  *AnswerJSON  `json:",omitempty"`
}

// msgFormat is the JSON engine of the oracle messages.
//
// - implements serde.FormatEngine
type msgFormat struct{}

// Encode implements serde.FormatEngine. It returns the serialized data of the
// message if appropriate, otherwise an error.
func (f msgFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	var m MessageJSON

	switch in := msg.(type) {
	case oracle.Request:
		of := in.GetFixOf()
		m.Request = &RequestJSON{Name: of.Name, Date: of.Date.UnixNano()}
	case oracle.Answer:
		fix := in.GetFix()
		m.Answer = &AnswerJSON{
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
	case m.Request != nil:
		of := deal.FixOf{Name: m.Request.Name, Date: time.Unix(0, m.Request.Date)}
		return oracle.NewRequest(of), nil
	case m.Answer != nil:
		fix := deal.Fix{
			Of:       deal.FixOf{Name: m.Answer.Name, Date: time.Unix(0, m.Answer.Date)},
			ValueBps: m.Answer.ValueBps,
		}
		return oracle.NewAnswer(fix), nil
	default:
		return nil, xerrors.New("message is empty")
	}
}

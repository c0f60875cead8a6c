package protocol

import (
	"context"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
)

// session wraps the stream with the counterparty and tags every log entry
// with a unique session identifier.
type session struct {
	id     string
	role   string
	logger zerolog.Logger
	out    mino.Sender
	in     mino.Receiver
	peer   mino.Address
}

func newSession(cfg Config, role string, out mino.Sender, in mino.Receiver, peer mino.Address) session {
	id := xid.New().String()

	logger := cfg.Logger.With().
		Str("session", id).
		Str("role", role).
		Logger()

	return session{
		id:     id,
		role:   role,
		logger: logger,
		out:    out,
		in:     in,
		peer:   peer,
	}
}

// send delivers the message to the counterparty. A network failure is
// reported as an UnreachableError.
func (s session) send(msg serde.Message) error {
	err := <-s.out.Send(msg, s.peer)
	if err != nil {
		return UnreachableError{Err: err}
	}

	return nil
}

// recv waits for the next message of the counterparty. A broken stream is
// reported as an UnreachableError.
func (s session) recv(ctx context.Context) (serde.Message, error) {
	_, msg, err := s.in.Recv(ctx)
	if err != nil {
		return nil, UnreachableError{Err: err}
	}

	return msg, nil
}

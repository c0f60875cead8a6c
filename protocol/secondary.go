package protocol

import (
	"context"

	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// SecondaryHooks provide the business content of a secondary session.
type SecondaryHooks interface {
	// ValidateTerms checks the handshake payload. A RejectedTermsError is
	// reported back to the primary with its reason.
	ValidateTerms(sender ledger.Party, payload serde.Message) error

	// Assemble builds the settlement transaction for the terms and signs it
	// with the keys of this party. The peer address allows the hooks to
	// resolve the states claimed by the primary.
	Assemble(ctx context.Context, peer mino.Address, sender ledger.Party, payload serde.Message) (tx.SignedTransaction, error)

	// Finalize is called once with the fully signed transaction after it is
	// recorded.
	Finalize(ctx context.Context, stx tx.SignedTransaction) error
}

// Secondary runs the responding side of a session. It is registered as the
// stream handler of the flow endpoint and serves one session per stream.
//
// - implements mino.Handler
type Secondary struct {
	mino.UnsupportedHandler

	cfg      Config
	hooks    SecondaryHooks
	progress *Progress
}

// NewSecondary creates a secondary handler with the hooks.
func NewSecondary(cfg Config, hooks SecondaryHooks) *Secondary {
	return &Secondary{
		cfg:      cfg,
		hooks:    hooks,
		progress: NewProgress(StepReceiving),
	}
}

// GetProgress returns the progress tracker of the handler.
func (s *Secondary) GetProgress() *Progress {
	return s.progress
}

// Stream implements mino.Handler. It serves a session opened by a distant
// primary. A rejection of the terms is reported to the primary inside the
// session, so the stream itself completes without an error and the reject
// message is never raced by a stream failure.
func (s *Secondary) Stream(out mino.Sender, in mino.Receiver) error {
	promSessions.WithLabelValues("secondary").Inc()

	err := s.serve(out, in)

	observeOutcome("secondary", err)

	if _, ok := err.(RejectedTermsError); ok {
		return nil
	}

	return err
}

func (s *Secondary) serve(out mino.Sender, in mino.Receiver) error {
	ctx := context.Background()

	s.progress.set(StepReceiving)

	peer, msg, err := in.Recv(ctx)
	if err != nil {
		return UnreachableError{Err: err}
	}

	sess := newSession(s.cfg, "secondary", out, in, peer)
	sess.logger.Info().Msg("session started")

	handshake, ok := msg.(Handshake)
	if !ok {
		return xerrors.Errorf("unexpected message of type '%T'", msg)
	}

	s.progress.set(StepVerifying)

	err = s.hooks.ValidateTerms(handshake.GetSender(), handshake.GetPayload())
	if err != nil {
		rejected, ok := err.(RejectedTermsError)
		if ok {
			sendErr := sess.send(NewReject(rejected.Reason))
			if sendErr != nil {
				sess.logger.Warn().Err(sendErr).Msg("couldn't send rejection")
			}
		}

		return err
	}

	s.progress.set(StepSigning)

	stx, err := s.hooks.Assemble(ctx, peer, handshake.GetSender(), handshake.GetPayload())
	if err != nil {
		return xerrors.Errorf("couldn't assemble transaction: %v", err)
	}

	s.progress.set(StepSwappingSignatures)

	err = sess.send(NewProposal(stx))
	if err != nil {
		return err
	}

	msg, err = sess.recv(ctx)
	if err != nil {
		return err
	}

	sigs, ok := msg.(SignaturesMessage)
	if !ok {
		return xerrors.Errorf("unexpected message of type '%T'", msg)
	}

	for _, sig := range sigs.GetSignatures() {
		if stx.HasSignatureFrom(sig.GetSigner()) {
			continue
		}

		stx, err = stx.WithSignature(sig)
		if err != nil {
			return xerrors.Errorf("couldn't add signature: %v", err)
		}
	}

	err = stx.VerifyFullySigned(s.cfg.HashFactory)
	if err != nil {
		return VerificationError{Err: err}
	}

	s.progress.set(StepRecording)

	err = s.cfg.Store.Put(stx)
	if err != nil {
		return xerrors.Errorf("couldn't record transaction: %v", err)
	}

	err = s.hooks.Finalize(ctx, stx)
	if err != nil {
		return xerrors.Errorf("couldn't finalize: %v", err)
	}

	s.progress.set(StepDone)
	sess.logger.Info().Msg("session completed")

	return nil
}

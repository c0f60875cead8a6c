package protocol

import (
	"context"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// PrimaryHooks provide the business content of a primary session. The runner
// drives the state machine and calls the hooks at the points where the flow
// decides.
type PrimaryHooks interface {
	// Terms returns the payload of the handshake opening the session.
	Terms() (serde.Message, error)

	// CheckProposal verifies the business terms of the proposal. The inputs
	// are the resolved dependencies of the transaction, in the order of its
	// input references.
	CheckProposal(stx tx.SignedTransaction, inputs []ledger.StateAndRef) error

	// Finalize is called once with the fully signed transaction after it is
	// recorded.
	Finalize(ctx context.Context, stx tx.SignedTransaction) error
}

// Primary runs the initiating side of a session. It opens the stream, sends
// the handshake and completes the settlement by collecting the notary
// signature over the proposal of the secondary.
type Primary struct {
	cfg      Config
	hooks    PrimaryHooks
	progress *Progress
}

// NewPrimary creates a primary runner with the hooks.
func NewPrimary(cfg Config, hooks PrimaryHooks) *Primary {
	return &Primary{
		cfg:      cfg,
		hooks:    hooks,
		progress: NewProgress(StepAwaitingProposal),
	}
}

// GetProgress returns the progress tracker of the runner.
func (p *Primary) GetProgress() *Progress {
	return p.progress
}

// Run executes a session with the peer and returns the fully signed
// transaction. The rpc must be a stream endpoint whose distant handler runs
// the matching secondary.
func (p *Primary) Run(ctx context.Context, rpc mino.RPC, peer mino.Address) (result tx.SignedTransaction, err error) {
	promSessions.WithLabelValues("primary").Inc()
	defer func() {
		observeOutcome("primary", err)
	}()

	out, in, err := rpc.Stream(ctx, mino.NewAddresses(peer))
	if err != nil {
		return result, UnreachableError{Err: err}
	}

	sess := newSession(p.cfg, "primary", out, in, peer)
	sess.logger.Info().Msg("session started")

	payload, err := p.hooks.Terms()
	if err != nil {
		return result, xerrors.Errorf("couldn't make terms: %v", err)
	}

	err = sess.send(NewHandshake(p.cfg.Identity, payload))
	if err != nil {
		return result, err
	}

	p.progress.set(StepAwaitingProposal)

	msg, err := sess.recv(ctx)
	if err != nil {
		return result, err
	}

	var stx tx.SignedTransaction
	switch m := msg.(type) {
	case Proposal:
		stx = m.GetTransaction()
	case Reject:
		return result, RejectedTermsError{Reason: m.GetReason()}
	default:
		return result, xerrors.Errorf("unexpected message of type '%T'", msg)
	}

	p.progress.set(StepVerifying)

	inputs, err := p.verify(ctx, stx, peer)
	if err != nil {
		return result, err
	}

	err = p.hooks.CheckProposal(stx, inputs)
	if err != nil {
		return result, err
	}

	p.progress.set(StepSigning)

	stx, err = signWith(p.cfg, stx, stx.GetWire().GetRequiredSigners())
	if err != nil {
		return result, xerrors.Errorf("couldn't sign: %v", err)
	}

	p.progress.set(StepNotarizing)

	notarySig, err := p.cfg.Notary.Notarize(ctx, stx)
	if err != nil {
		return result, err
	}

	stx, err = stx.WithSignature(notarySig)
	if err != nil {
		return result, xerrors.Errorf("couldn't add notary signature: %v", err)
	}

	err = stx.VerifyFullySigned(p.cfg.HashFactory)
	if err != nil {
		return result, VerificationError{Err: err}
	}

	p.progress.set(StepSendingSignatures)

	err = sess.send(NewSignaturesMessage(stx.GetSignatures()...))
	if err != nil {
		return result, err
	}

	p.progress.set(StepRecording)

	err = p.cfg.Store.Put(stx)
	if err != nil {
		return result, xerrors.Errorf("couldn't record transaction: %v", err)
	}

	p.progress.set(StepCopyingToObservers)

	err = p.hooks.Finalize(ctx, stx)
	if err != nil {
		return result, xerrors.Errorf("couldn't finalize: %v", err)
	}

	p.progress.set(StepDone)
	sess.logger.Info().Msg("session completed")

	return stx, nil
}

// verify resolves the dependencies of the proposal and checks the signatures
// present so far and the contract rules.
func (p *Primary) verify(ctx context.Context, stx tx.SignedTransaction,
	peer mino.Address) ([]ledger.StateAndRef, error) {

	wire := stx.GetWire()

	inputs, err := p.cfg.Resolver.Resolve(ctx, wire.GetInputs(), peer)
	if err != nil {
		return nil, err
	}

	missing := p.missingKeys(wire)

	err = stx.VerifySignaturesExcept(p.cfg.HashFactory, missing...)
	if err != nil {
		return nil, VerificationError{Err: err}
	}

	err = p.cfg.Validation.Validate(wire, inputs)
	if err != nil {
		return nil, VerificationError{Err: err}
	}

	return inputs, nil
}

// missingKeys returns the keys allowed to be absent from the proposal, which
// are the keys this party holds and the notary keys.
func (p *Primary) missingKeys(wire tx.WireTransaction) []crypto.PublicKey {
	missing := make([]crypto.PublicKey, 0)

	for _, key := range wire.GetRequiredSigners() {
		_, err := p.cfg.Keys.SignerFor(key)
		if err == nil {
			missing = append(missing, key)
		}
	}

	for _, notary := range wire.GetNotaries() {
		missing = append(missing, notary.GetPublicKey())
	}

	return missing
}

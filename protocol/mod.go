// Package protocol implements the two-party atomic settlement protocol.
//
// A session involves two participants over a stream. The primary opens the
// session with a handshake, the secondary assembles and partially signs the
// settlement transaction and proposes it back. The primary verifies the
// proposal against its own records, counter-signs, collects the notary
// signature and returns the full signature set so that both sides record the
// same fully signed transaction.
//
// The business content of a session is delegated to hooks so that different
// flows, like a trade or a deal fixing, share the same state machine.
package protocol

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/keychain"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/store"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/ledger/validation"
	"go.dedis.ch/dvp/mino"
)

// Step is a stage of a protocol session. Each role progresses through its own
// sequence of steps, observable through the progress watcher.
type Step byte

// Steps of the primary role, in order.
const (
	// StepAwaitingProposal is the primary waiting for the transaction
	// proposed by the secondary after the handshake is sent.
	StepAwaitingProposal Step = iota

	// StepVerifying is the verification of the proposal, for both roles.
	StepVerifying

	// StepSigning is the production of the local signatures, for both roles.
	StepSigning

	// StepNotarizing is the primary collecting the notary signature.
	StepNotarizing

	// StepSendingSignatures is the primary returning the full signature set.
	StepSendingSignatures

	// StepRecording is the storage of the fully signed transaction, for both
	// roles.
	StepRecording

	// StepCopyingToObservers is the primary copying the recorded transaction
	// to the observers, when the flow has any.
	StepCopyingToObservers

	// StepDone is the completion of the session, for both roles.
	StepDone

	// StepReceiving is the secondary waiting for the handshake.
	StepReceiving

	// StepSwappingSignatures is the secondary sending its proposal and
	// waiting for the signatures of the primary and the notary.
	StepSwappingSignatures
)

func (s Step) String() string {
	switch s {
	case StepAwaitingProposal:
		return "awaiting proposal"
	case StepVerifying:
		return "verifying"
	case StepSigning:
		return "signing"
	case StepNotarizing:
		return "notarizing"
	case StepSendingSignatures:
		return "sending signatures"
	case StepRecording:
		return "recording"
	case StepCopyingToObservers:
		return "copying to observers"
	case StepDone:
		return "done"
	case StepReceiving:
		return "receiving"
	case StepSwappingSignatures:
		return "swapping signatures"
	default:
		return fmt.Sprintf("unknown step %d", s)
	}
}

// Observer is the interface to implement to watch the steps of a session.
type Observer interface {
	NotifyCallback(step Step)
}

// Progress tracks the current step of a session and notifies its observers
// of every transition.
type Progress struct {
	sync.RWMutex

	current   Step
	observers map[Observer]struct{}
}

// NewProgress creates a progress tracker starting at the step.
func NewProgress(start Step) *Progress {
	return &Progress{
		current:   start,
		observers: make(map[Observer]struct{}),
	}
}

// Current returns the current step.
func (p *Progress) Current() Step {
	p.RLock()
	defer p.RUnlock()

	return p.current
}

// Add adds the observer to the list of observers that will be notified of
// the transitions.
func (p *Progress) Add(obs Observer) {
	p.Lock()
	p.observers[obs] = struct{}{}
	p.Unlock()
}

// Remove removes the observer from the list thus stopping it from receiving
// the transitions.
func (p *Progress) Remove(obs Observer) {
	p.Lock()
	delete(p.observers, obs)
	p.Unlock()
}

func (p *Progress) set(step Step) {
	p.Lock()
	p.current = step
	observers := make([]Observer, 0, len(p.observers))
	for obs := range p.observers {
		observers = append(observers, obs)
	}
	p.Unlock()

	for _, obs := range observers {
		obs.NotifyCallback(step)
	}
}

// channelObserver pushes the steps into a buffered channel.
//
// - implements protocol.Observer
type channelObserver struct {
	ch chan Step
}

func (obs channelObserver) NotifyCallback(step Step) {
	select {
	case obs.ch <- step:
	default:
	}
}

// Watch returns a channel populated with the steps of the session until the
// context is done.
func (p *Progress) Watch(ctx context.Context) <-chan Step {
	obs := channelObserver{ch: make(chan Step, 16)}

	p.Add(obs)

	go func() {
		<-ctx.Done()
		p.Remove(obs)
		close(obs.ch)
	}()

	return obs.ch
}

// RejectedTermsError is returned when a participant refuses the terms of the
// session.
type RejectedTermsError struct {
	Reason string
}

func (e RejectedTermsError) Error() string {
	return fmt.Sprintf("terms rejected: %s", e.Reason)
}

// UnreachableError is returned when the counterparty cannot be reached or the
// stream breaks before the session completes.
type UnreachableError struct {
	Err error
}

func (e UnreachableError) Error() string {
	return fmt.Sprintf("counterparty unreachable: %v", e.Err)
}

func (e UnreachableError) Unwrap() error {
	return e.Err
}

// VerificationError is returned when the proposal fails the ledger or
// signature verification.
type VerificationError struct {
	Err error
}

func (e VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %v", e.Err)
}

func (e VerificationError) Unwrap() error {
	return e.Err
}

// Notarizer collects the uniqueness signature of a notary over a transaction.
type Notarizer interface {
	Notarize(ctx context.Context, stx tx.SignedTransaction) (tx.DigitalSignature, error)
}

// DependencyResolver fetches the transactions backing a set of state
// references, from the local store or from the peer.
type DependencyResolver interface {
	Resolve(ctx context.Context, refs []ledger.StateRef, peer mino.Address) ([]ledger.StateAndRef, error)
}

// Config gathers the collaborators shared by every session of a participant.
type Config struct {
	// Identity is the party running the sessions.
	Identity ledger.Party

	// Keys holds the signing keys of the party.
	Keys keychain.KeyManager

	// Store records the settled transactions.
	Store store.Transactions

	// Resolver fetches the dependencies of a proposal.
	Resolver DependencyResolver

	// Notary signs for uniqueness. Only the primary uses it.
	Notary Notarizer

	// Validation verifies the contract rules of a proposal.
	Validation validation.Engine

	// HashFactory hashes the transactions.
	HashFactory crypto.HashFactory

	// Logger is the parent logger of the sessions.
	Logger zerolog.Logger
}

// signWith produces a signature of the digest for every required key held in
// the keychain and appends them to the transaction.
func signWith(cfg Config, stx tx.SignedTransaction, keys []crypto.PublicKey) (tx.SignedTransaction, error) {
	digest, err := stx.Hash(cfg.HashFactory)
	if err != nil {
		return stx, err
	}

	for _, key := range keys {
		if stx.HasSignatureFrom(key) {
			continue
		}

		signer, err := cfg.Keys.SignerFor(key)
		if err != nil {
			continue
		}

		sig, err := signer.Sign(digest)
		if err != nil {
			return stx, err
		}

		stx, err = stx.WithSignature(tx.NewDigitalSignature(key, sig))
		if err != nil {
			return stx, err
		}
	}

	return stx, nil
}

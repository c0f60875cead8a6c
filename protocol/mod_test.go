package protocol

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/keychain"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/serde"
)

func TestStep_String(t *testing.T) {
	strings := map[Step]string{
		StepAwaitingProposal:   "awaiting proposal",
		StepVerifying:          "verifying",
		StepSigning:            "signing",
		StepNotarizing:         "notarizing",
		StepSendingSignatures:  "sending signatures",
		StepRecording:          "recording",
		StepCopyingToObservers: "copying to observers",
		StepDone:               "done",
		StepReceiving:          "receiving",
		StepSwappingSignatures: "swapping signatures",
	}

	for step, str := range strings {
		require.Equal(t, str, step.String())
	}

	require.Equal(t, "unknown step 200", Step(200).String())
}

// recordingObserver keeps the steps it is notified of.
type recordingObserver struct {
	steps []Step
}

func (obs *recordingObserver) NotifyCallback(step Step) {
	obs.steps = append(obs.steps, step)
}

func TestProgress_Notify(t *testing.T) {
	p := NewProgress(StepReceiving)
	require.Equal(t, StepReceiving, p.Current())

	obs := &recordingObserver{}
	p.Add(obs)

	p.set(StepVerifying)
	p.set(StepDone)
	require.Equal(t, StepDone, p.Current())
	require.Equal(t, []Step{StepVerifying, StepDone}, obs.steps)

	p.Remove(obs)
	p.set(StepReceiving)
	require.Equal(t, []Step{StepVerifying, StepDone}, obs.steps)
}

func TestProgress_Watch(t *testing.T) {
	p := NewProgress(StepAwaitingProposal)

	ctx, cancel := context.WithCancel(context.Background())

	ch := p.Watch(ctx)

	p.set(StepVerifying)
	require.Equal(t, StepVerifying, <-ch)

	p.set(StepDone)
	require.Equal(t, StepDone, <-ch)

	cancel()

	for range ch {
	}
}

func TestRejectedTermsError(t *testing.T) {
	err := RejectedTermsError{Reason: "price too low"}
	require.EqualError(t, err, "terms rejected: price too low")
}

func TestUnreachableError(t *testing.T) {
	err := UnreachableError{Err: fake.GetError()}
	require.EqualError(t, err, "counterparty unreachable: fake error")
	require.Equal(t, fake.GetError(), err.Unwrap())
}

func TestVerificationError(t *testing.T) {
	err := VerificationError{Err: fake.GetError()}
	require.EqualError(t, err, "verification failed: fake error")
	require.Equal(t, fake.GetError(), err.Unwrap())
}

func TestSignWith(t *testing.T) {
	f := crypto.NewSha256Factory()

	keys := keychain.NewInMemory()

	held, err := keys.FreshKey()
	require.NoError(t, err)

	stranger, err := keychain.NewInMemory().FreshKey()
	require.NoError(t, err)

	cfg := Config{Keys: keys, HashFactory: f}

	notary := ledger.NewParty("notary", fake.PublicKey{})

	b := tx.NewBuilder(f)
	require.NoError(t, b.AddOutput(cash.NewState(cash.NewAmount(10, "USD"), held), notary))
	require.NoError(t, b.AddCommand(cash.Issue{}, held, stranger))

	stx, err := b.ToSignedTransaction(false)
	require.NoError(t, err)

	// Only the held key can be signed for, the other one is skipped.
	stx, err = signWith(cfg, stx, stx.GetWire().GetRequiredSigners())
	require.NoError(t, err)
	require.Len(t, stx.GetSignatures(), 1)
	require.True(t, stx.HasSignatureFrom(held))

	// Signing again does not duplicate the signature.
	stx, err = signWith(cfg, stx, stx.GetWire().GetRequiredSigners())
	require.NoError(t, err)
	require.Len(t, stx.GetSignatures(), 1)

	err = stx.VerifySignaturesExcept(f, stranger)
	require.NoError(t, err)
}

func TestSignWith_BadHashFactory(t *testing.T) {
	cfg := Config{
		Keys:        keychain.NewInMemory(),
		HashFactory: fake.NewBadHashFactory(crypto.NewSha256Factory()),
	}

	stx, err := tx.NewSignedTransaction(tx.NewWireTransaction(nil, nil, nil, nil))
	require.NoError(t, err)

	_, err = signWith(cfg, stx, nil)
	require.Error(t, err)
}

// stepSender captures the messages sent during a session.
type stepSender struct {
	msgs chan serde.Message
}

func (s stepSender) Send(msg serde.Message, addrs ...mino.Address) <-chan error {
	s.msgs <- msg

	errs := make(chan error)
	close(errs)

	return errs
}

// stepReceiver plays a scripted sequence of incoming messages.
type stepReceiver struct {
	msgs []serde.Message
}

func (r *stepReceiver) Recv(ctx context.Context) (mino.Address, serde.Message, error) {
	if len(r.msgs) == 0 {
		return nil, nil, io.EOF
	}

	msg := r.msgs[0]
	r.msgs = r.msgs[1:]

	return fake.NewAddress(0), msg, nil
}

// rejectingHooks refuse every handshake.
type rejectingHooks struct{}

func (rejectingHooks) ValidateTerms(sender ledger.Party, payload serde.Message) error {
	return RejectedTermsError{Reason: "no thanks"}
}

func (rejectingHooks) Assemble(ctx context.Context, peer mino.Address,
	sender ledger.Party, payload serde.Message) (tx.SignedTransaction, error) {

	return tx.SignedTransaction{}, nil
}

func (rejectingHooks) Finalize(ctx context.Context, stx tx.SignedTransaction) error {
	return nil
}

func TestSecondary_Stream_Rejection(t *testing.T) {
	secondary := NewSecondary(Config{}, rejectingHooks{})

	sender := ledger.NewParty("seller", fake.PublicKey{})

	out := stepSender{msgs: make(chan serde.Message, 1)}
	in := &stepReceiver{msgs: []serde.Message{NewHandshake(sender, fake.Message{})}}

	// The rejection went back to the primary, the stream is served without an
	// error that could race the reject message.
	err := secondary.Stream(out, in)
	require.NoError(t, err)

	reject, ok := (<-out.msgs).(Reject)
	require.True(t, ok)
	require.Equal(t, "no thanks", reject.GetReason())
}

func TestSecondary_Stream_UnexpectedMessage(t *testing.T) {
	secondary := NewSecondary(Config{}, rejectingHooks{})

	out := stepSender{msgs: make(chan serde.Message, 1)}
	in := &stepReceiver{msgs: []serde.Message{fake.Message{}}}

	err := secondary.Stream(out, in)
	require.EqualError(t, err, "unexpected message of type 'fake.Message'")
}

func TestObserveOutcome(t *testing.T) {
	observeOutcome("primary", nil)
	observeOutcome("primary", RejectedTermsError{Reason: "no"})
	observeOutcome("primary", UnreachableError{Err: fake.GetError()})
	observeOutcome("primary", VerificationError{Err: fake.GetError()})
	observeOutcome("primary", fake.GetError())
}

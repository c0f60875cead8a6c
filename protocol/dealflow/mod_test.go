package dealflow

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/protocol"
)

var fixingDate = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func makeParties() (ledger.Party, ledger.Party) {
	alice := ledger.NewParty("alice", schnorr.NewSigner().GetPublicKey())
	bob := ledger.NewParty("bob", schnorr.NewSigner().GetPublicKey())

	return alice, bob
}

func makeAgreement(alice, bob ledger.Party) deal.RateAgreement {
	return deal.NewRateAgreement("swap-1", alice, bob,
		cash.NewAmount(1000000, "USD"), 125, "LIBOR-3M", []time.Time{fixingDate})
}

func makeWire(states ...ledger.ContractState) tx.SignedTransaction {
	outs := make([]tx.Output, len(states))
	for i, state := range states {
		outs[i] = tx.Output{
			State:  state,
			Notary: ledger.NewParty("notary", fake.PublicKey{}),
		}
	}

	stx, _ := tx.NewSignedTransaction(tx.NewWireTransaction(nil, outs, nil, nil))

	return stx
}

func TestFixer(t *testing.T) {
	alice, bob := makeParties()

	require.Equal(t, "alice", Fixer(makeAgreement(alice, bob)).GetName())

	// The decision does not depend on the order of the parties.
	require.Equal(t, "alice", Fixer(makeAgreement(bob, alice)).GetName())
}

func TestBook_GetAndUpdate(t *testing.T) {
	f := crypto.NewSha256Factory()

	alice, bob := makeParties()

	book := NewBook(f)

	_, found := book.Get("swap-1")
	require.False(t, found)

	ra := makeAgreement(alice, bob)

	// Non-deal outputs are skipped.
	stx := makeWire(cash.NewState(cash.NewAmount(10, "USD"), fake.PublicKey{}), ra)

	require.NoError(t, book.Update(stx))

	sar, found := book.Get("swap-1")
	require.True(t, found)
	require.Equal(t, uint32(1), sar.Ref.GetIndex())
	require.Equal(t, ra, sar.State)

	err := NewBook(fake.NewBadHashFactory(f)).Update(stx)
	require.Error(t, err)
}

func TestInstigatorHooks_CheckProposal(t *testing.T) {
	f := crypto.NewSha256Factory()

	alice, bob := makeParties()
	ra := makeAgreement(alice, bob)

	hooks := instigatorHooks{
		instigator: &Instigator{cfg: protocol.Config{HashFactory: f}},
		deal:       ra,
	}

	err := hooks.CheckProposal(makeWire(ra), nil)
	require.NoError(t, err)

	other := deal.NewRateAgreement("swap-2", alice, bob,
		cash.NewAmount(1000000, "USD"), 125, "LIBOR-3M", []time.Time{fixingDate})

	err = hooks.CheckProposal(makeWire(other), nil)
	require.EqualError(t, err, "proposal does not create the offered deal")

	err = hooks.CheckProposal(makeWire(), nil)
	require.EqualError(t, err, "proposal does not create the offered deal")
}

func TestAcceptorHooks_ValidateTerms(t *testing.T) {
	alice, bob := makeParties()
	ra := makeAgreement(alice, bob)

	notary := ledger.NewParty("notary", fake.PublicKey{})

	hooks := acceptorHooks{acceptor: &Acceptor{cfg: protocol.Config{Identity: bob}}}

	err := hooks.ValidateTerms(alice, NewOffer(ra, notary))
	require.NoError(t, err)

	stranger := ledger.NewParty("carol", schnorr.NewSigner().GetPublicKey())

	err = hooks.ValidateTerms(stranger, NewOffer(ra, notary))
	require.EqualError(t, err, "terms rejected: offer from a stranger")

	hooks = acceptorHooks{acceptor: &Acceptor{cfg: protocol.Config{Identity: stranger}}}

	err = hooks.ValidateTerms(alice, NewOffer(ra, notary))
	require.EqualError(t, err, "terms rejected: not a party of the deal")

	err = hooks.ValidateTerms(alice, fake.Message{})
	require.EqualError(t, err, "invalid payload of type 'fake.Message'")
}

func TestFloaterHooks_CheckProposal(t *testing.T) {
	alice, bob := makeParties()
	ra := makeAgreement(alice, bob)

	ref := ledger.NewStateRef(bytes.Repeat([]byte{0xaa}, 32), 0)

	fix := deal.Fix{Of: deal.FixOf{Name: "LIBOR-3M", Date: fixingDate}, ValueBps: 140}

	after := deal.NewFixedRateAgreement(ra.GetName(), ra.GetParties(), ra.GetNotional(),
		ra.GetFixedRateBps(), ra.GetOracleName(), ra.GetFixingDates(), []deal.Fix{fix})

	hooks := floaterHooks{
		current: ledger.StateAndRef{Ref: ref, State: ra},
		deal:    ra,
		fix:     fix,
	}

	inputs := []ledger.StateAndRef{{Ref: ref, State: ra}}

	err := hooks.CheckProposal(makeWire(after), inputs)
	require.NoError(t, err)

	err = hooks.CheckProposal(makeWire(after), nil)
	require.EqualError(t, err, "proposal does not consume the current deal state")

	err = hooks.CheckProposal(makeWire(), inputs)
	require.EqualError(t, err, "proposal does not produce the fixed deal")

	wrongValue := deal.NewFixedRateAgreement(ra.GetName(), ra.GetParties(), ra.GetNotional(),
		ra.GetFixedRateBps(), ra.GetOracleName(), ra.GetFixingDates(),
		[]deal.Fix{{Of: fix.Of, ValueBps: 999}})

	err = hooks.CheckProposal(makeWire(wrongValue), inputs)
	require.EqualError(t, err, "proposal applies a different fix")

	unfixed := makeAgreement(alice, bob)

	err = hooks.CheckProposal(makeWire(unfixed), inputs)
	require.EqualError(t, err, "expected 1 fixes, found 0")
}

func TestFixerHooks_ValidateTerms(t *testing.T) {
	hooks := fixerHooks{}

	err := hooks.ValidateTerms(ledger.Party{}, NewFixingRequest(ledger.StateRef{}, deal.Fix{}))
	require.NoError(t, err)

	err = hooks.ValidateTerms(ledger.Party{}, fake.Message{})
	require.EqualError(t, err, "invalid payload of type 'fake.Message'")
}

package dealflow

import (
	"context"
	"time"

	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
	"go.dedis.ch/dvp/protocol"
	"go.dedis.ch/dvp/serde"
	"golang.org/x/xerrors"
)

// Floater drives the fixing sessions of the deals the counterparty fixes. It
// queries the oracle for the next observation and opens a session asking the
// fixer to apply it.
type Floater struct {
	cfg   protocol.Config
	rpc   mino.RPC
	rates RateSource
	book  *Book
}

// NewFloater creates a floater reading its deals from the book.
func NewFloater(m mino.Mino, cfg protocol.Config, rates RateSource, book *Book) (*Floater, error) {
	rpc, err := m.CreateRPC(FixRPCName, mino.UnsupportedHandler{}, protocol.MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return &Floater{
		cfg:   cfg,
		rpc:   rpc,
		rates: rates,
		book:  book,
	}, nil
}

// FixNext applies the next pending fix of the deal with the name, running a
// session with the fixer at the peer address. It returns the fully signed
// transaction.
func (f *Floater) FixNext(ctx context.Context, name string, peer mino.Address) (tx.SignedTransaction, error) {
	var stx tx.SignedTransaction

	sar, found := f.book.Get(name)
	if !found {
		return stx, xerrors.Errorf("unknown deal '%s'", name)
	}

	fixable, ok := sar.State.(deal.Fixable)
	if !ok {
		return stx, xerrors.Errorf("deal '%s' has no fixings", name)
	}

	next := fixable.NextFixing()
	if next == nil {
		return stx, xerrors.Errorf("deal '%s' is fully fixed", name)
	}

	fix, err := f.rates.GetFix(ctx, *next)
	if err != nil {
		return stx, xerrors.Errorf("couldn't get fix: %v", err)
	}

	hooks := floaterHooks{
		floater: f,
		current: sar,
		deal:    fixable,
		fix:     fix,
	}

	primary := protocol.NewPrimary(f.cfg, hooks)

	return primary.Run(ctx, f.rpc, peer)
}

// floaterHooks verify the application of one fix.
//
// - implements protocol.PrimaryHooks
type floaterHooks struct {
	floater *Floater
	current ledger.StateAndRef
	deal    deal.Fixable
	fix     deal.Fix
}

// Terms implements protocol.PrimaryHooks.
func (h floaterHooks) Terms() (serde.Message, error) {
	return NewFixingRequest(h.current.Ref, h.fix), nil
}

// CheckProposal implements protocol.PrimaryHooks. It verifies that the
// proposal consumes the current deal state and produces it with exactly the
// requested fix applied.
func (h floaterHooks) CheckProposal(stx tx.SignedTransaction, inputs []ledger.StateAndRef) error {
	consumed := false
	for _, input := range inputs {
		if input.Ref.Equal(h.current.Ref) {
			consumed = true
			break
		}
	}

	if !consumed {
		return xerrors.New("proposal does not consume the current deal state")
	}

	before, ok := h.current.State.(deal.RateAgreement)
	if !ok {
		return xerrors.Errorf("invalid deal of type '%T'", h.current.State)
	}

	for _, output := range stx.GetWire().GetOutputs() {
		after, ok := output.State.(deal.RateAgreement)
		if !ok || after.GetName() != before.GetName() {
			continue
		}

		fixes := after.GetFixes()
		if len(fixes) != len(before.GetFixes())+1 {
			return xerrors.Errorf("expected %d fixes, found %d",
				len(before.GetFixes())+1, len(fixes))
		}

		applied := fixes[len(fixes)-1]
		if !applied.Of.Equal(h.fix.Of) || applied.ValueBps != h.fix.ValueBps {
			return xerrors.New("proposal applies a different fix")
		}

		return nil
	}

	return xerrors.New("proposal does not produce the fixed deal")
}

// Finalize implements protocol.PrimaryHooks. It records the fixed deal in the
// book.
func (h floaterHooks) Finalize(ctx context.Context, stx tx.SignedTransaction) error {
	return h.floater.book.Update(stx)
}

// DealFixer serves the fixing sessions of the deals it is the fixer of. For
// each request it resolves the current deal state, confirms the observation
// with its own oracle query and assembles the signed transition.
type DealFixer struct {
	cfg       protocol.Config
	rates     RateSource
	book      *Book
	secondary *protocol.Secondary
}

// NewDealFixer creates a fixer and registers it as the handler of the fixing
// endpoint.
func NewDealFixer(m mino.Mino, cfg protocol.Config, rates RateSource, book *Book) (*DealFixer, error) {
	fixer := &DealFixer{
		cfg:   cfg,
		rates: rates,
		book:  book,
	}

	fixer.secondary = protocol.NewSecondary(cfg, fixerHooks{fixer: fixer})

	_, err := m.CreateRPC(FixRPCName, fixer.secondary, protocol.MessageFactory{})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create rpc: %v", err)
	}

	return fixer, nil
}

// GetProgress returns the progress tracker of the sessions of the fixer.
func (f *DealFixer) GetProgress() *protocol.Progress {
	return f.secondary.GetProgress()
}

// fixerHooks assemble the application of one fix.
//
// - implements protocol.SecondaryHooks
type fixerHooks struct {
	fixer *DealFixer
}

// ValidateTerms implements protocol.SecondaryHooks.
func (h fixerHooks) ValidateTerms(sender ledger.Party, payload serde.Message) error {
	_, ok := payload.(FixingRequest)
	if !ok {
		return xerrors.Errorf("invalid payload of type '%T'", payload)
	}

	return nil
}

// Assemble implements protocol.SecondaryHooks. It resolves the current deal
// state, confirms the fix with its own oracle query and builds the signed
// transition.
func (h fixerHooks) Assemble(ctx context.Context, peer mino.Address,
	sender ledger.Party, payload serde.Message) (tx.SignedTransaction, error) {

	var stx tx.SignedTransaction

	req, ok := payload.(FixingRequest)
	if !ok {
		return stx, xerrors.Errorf("invalid payload of type '%T'", payload)
	}

	cfg := h.fixer.cfg

	resolved, err := cfg.Resolver.Resolve(ctx, []ledger.StateRef{req.GetRef()}, peer)
	if err != nil {
		return stx, xerrors.Errorf("couldn't resolve the deal: %v", err)
	}

	current := resolved[0]

	fixable, ok := current.State.(deal.Fixable)
	if !ok {
		return stx, xerrors.Errorf("invalid deal of type '%T'", current.State)
	}

	next := fixable.NextFixing()
	if next == nil {
		return stx, xerrors.New("deal is fully fixed")
	}

	fix := req.GetFix()
	if !fix.Of.Equal(*next) {
		return stx, xerrors.Errorf("unexpected fix of '%s' at %v", fix.Of.Name, fix.Of.Date)
	}

	ours, err := h.fixer.rates.GetFix(ctx, *next)
	if err != nil {
		return stx, xerrors.Errorf("couldn't get fix: %v", err)
	}

	if ours.ValueBps != fix.ValueBps {
		return stx, xerrors.Errorf("fix %d disagrees with the oracle value %d",
			fix.ValueBps, ours.ValueBps)
	}

	builder := tx.NewBuilder(cfg.HashFactory)

	err = builder.SetTimeWindow(time.Now(), proposalWindow)
	if err != nil {
		return stx, xerrors.Errorf("couldn't set window: %v", err)
	}

	err = fixable.GenerateFix(builder, current, fix, current.Notary)
	if err != nil {
		return stx, xerrors.Errorf("couldn't generate fix: %v", err)
	}

	signer, err := cfg.Keys.SignerFor(cfg.Identity.GetPublicKey())
	if err != nil {
		return stx, xerrors.Errorf("couldn't find signer: %v", err)
	}

	err = builder.SignWith(signer)
	if err != nil {
		return stx, xerrors.Errorf("couldn't sign: %v", err)
	}

	stx, err = builder.ToSignedTransaction(false)
	if err != nil {
		return stx, xerrors.Errorf("couldn't build transaction: %v", err)
	}

	return stx, nil
}

// Finalize implements protocol.SecondaryHooks. It records the fixed deal in
// the book.
func (h fixerHooks) Finalize(ctx context.Context, stx tx.SignedTransaction) error {
	return h.fixer.book.Update(stx)
}

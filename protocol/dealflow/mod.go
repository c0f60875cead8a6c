// Package dealflow implements the sessions creating and maintaining deals.
//
// A deal starts with an offer session where the instigator proposes the
// agreement and the acceptor assembles and co-signs its creation. Over the
// lifetime of the deal, fixing sessions consume the current state of the deal
// and produce it augmented with the rate observed from the oracle. Which
// party assembles a fixing and which one drives it is decided
// deterministically so that both ends agree without talking.
package dealflow

import (
	"context"
	"sync"

	"go.dedis.ch/dvp/contracts/deal"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"golang.org/x/xerrors"
)

// RPCName is the name of the deal creation endpoint.
const RPCName = "deal"

// FixRPCName is the name of the fixing endpoint.
const FixRPCName = "deal-fix"

// RateSource provides the rate observations applied to the deals.
type RateSource interface {
	GetFix(ctx context.Context, of deal.FixOf) (deal.Fix, error)
}

// Fixer returns the party applying the fixes of the deal. The party with the
// lexicographically smallest name serves the fixing sessions and assembles
// the transitions, the other one drives them as the floater.
func Fixer(d deal.State) ledger.Party {
	parties := d.GetParties()

	fixer := parties[0]
	for _, party := range parties[1:] {
		if party.GetName() < fixer.GetName() {
			fixer = party
		}
	}

	return fixer
}

// Book tracks the current state of the deals of a party.
type Book struct {
	sync.Mutex

	hashFactory crypto.HashFactory
	deals       map[string]ledger.StateAndRef
}

// NewBook creates an empty book.
func NewBook(f crypto.HashFactory) *Book {
	return &Book{
		hashFactory: f,
		deals:       make(map[string]ledger.StateAndRef),
	}
}

// Get returns the current state of the deal with the name.
func (b *Book) Get(name string) (ledger.StateAndRef, bool) {
	b.Lock()
	defer b.Unlock()

	sar, found := b.deals[name]

	return sar, found
}

// Update records the deal states produced by the transaction.
func (b *Book) Update(stx tx.SignedTransaction) error {
	hash, err := stx.Hash(b.hashFactory)
	if err != nil {
		return xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	b.Lock()
	defer b.Unlock()

	for i, output := range stx.GetWire().GetOutputs() {
		d, ok := output.State.(deal.State)
		if !ok {
			continue
		}

		b.deals[d.GetName()] = ledger.StateAndRef{
			Ref:    ledger.NewStateRef(hash, uint32(i)),
			State:  d,
			Notary: output.Notary,
		}
	}

	return nil
}

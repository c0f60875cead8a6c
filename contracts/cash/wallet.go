package cash

import (
	"sync"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"golang.org/x/xerrors"
)

// Wallet keeps track of the unspent cash states of a node. It is shared by
// the concurrent protocol instances, therefore it provides its own
// concurrency control.
type Wallet struct {
	sync.Mutex

	hashFactory crypto.HashFactory
	states      map[string]ledger.StateAndRef
}

// NewWallet creates a new empty wallet.
func NewWallet(f crypto.HashFactory) *Wallet {
	return &Wallet{
		hashFactory: f,
		states:      make(map[string]ledger.StateAndRef),
	}
}

// Add records an unspent cash state.
func (w *Wallet) Add(sar ledger.StateAndRef) error {
	if _, ok := sar.State.(State); !ok {
		return xerrors.Errorf("invalid state of type '%T'", sar.State)
	}

	w.Lock()
	w.states[sar.Ref.Key()] = sar
	w.Unlock()

	return nil
}

// List returns the unspent cash states.
func (w *Wallet) List() []ledger.StateAndRef {
	w.Lock()
	defer w.Unlock()

	list := make([]ledger.StateAndRef, 0, len(w.states))
	for _, sar := range w.states {
		list = append(list, sar)
	}

	return list
}

// Balance returns the total unspent amount of the currency.
func (w *Wallet) Balance(currency string) Amount {
	w.Lock()
	defer w.Unlock()

	total := Amount{Currency: currency}
	for _, sar := range w.states {
		state := sar.State.(State)
		if state.amount.Currency == currency {
			total.Quantity += state.amount.Quantity
		}
	}

	return total
}

// Update applies a recorded transaction to the wallet: the consumed states
// are removed and the produced cash states owned by one of the keys are
// added.
func (w *Wallet) Update(stx tx.SignedTransaction, isOwned func(crypto.PublicKey) bool) error {
	hash, err := stx.Hash(w.hashFactory)
	if err != nil {
		return xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	w.Lock()
	defer w.Unlock()

	for _, input := range stx.GetWire().GetInputs() {
		delete(w.states, input.Key())
	}

	for i, output := range stx.GetWire().GetOutputs() {
		state, ok := output.State.(State)
		if !ok || !isOwned(state.owner) {
			continue
		}

		ref := ledger.NewStateRef(hash, uint32(i))

		w.states[ref.Key()] = ledger.StateAndRef{
			Ref:    ref,
			State:  state,
			Notary: output.Notary,
		}
	}

	return nil
}

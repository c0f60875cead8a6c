// Package store defines the transaction store collaborator.
//
// The store is an append-and-lookup service keyed by the transaction hash. It
// is shared by the concurrent protocol instances of a node, therefore the
// implementations provide their own concurrency control and every call is
// atomic from the perspective of the callers.
package store

import (
	"sync"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger/tx"
	"golang.org/x/xerrors"
)

// Transactions is the interface of the transaction store.
type Transactions interface {
	// Get returns the transaction of the hash when it is known, otherwise the
	// boolean is false.
	Get(hash []byte) (tx.SignedTransaction, bool, error)

	// Put records the transaction. Storing an already recorded transaction is
	// a no-op, not an error.
	Put(stx tx.SignedTransaction) error
}

// InMemory is a transaction store that keeps the transactions in memory. It is
// mainly used by the tests, or by nodes that do not need persistence.
//
// - implements store.Transactions
type InMemory struct {
	sync.RWMutex

	hashFactory crypto.HashFactory
	txs         map[string]tx.SignedTransaction
}

// NewInMemory creates a new empty in-memory transaction store.
func NewInMemory(f crypto.HashFactory) *InMemory {
	return &InMemory{
		hashFactory: f,
		txs:         make(map[string]tx.SignedTransaction),
	}
}

// Get implements store.Transactions. It returns the transaction of the hash if
// it exists.
func (s *InMemory) Get(hash []byte) (tx.SignedTransaction, bool, error) {
	s.RLock()
	defer s.RUnlock()

	stx, found := s.txs[string(hash)]

	return stx, found, nil
}

// Put implements store.Transactions. It records the transaction, or does
// nothing if it is already recorded.
func (s *InMemory) Put(stx tx.SignedTransaction) error {
	hash, err := stx.Hash(s.hashFactory)
	if err != nil {
		return xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	s.Lock()
	defer s.Unlock()

	if _, found := s.txs[string(hash)]; found {
		return nil
	}

	s.txs[string(hash)] = stx

	return nil
}

// Len returns the number of recorded transactions.
func (s *InMemory) Len() int {
	s.RLock()
	defer s.RUnlock()

	return len(s.txs)
}

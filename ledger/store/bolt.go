package store

import (
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/serde"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var txBucket = []byte("transactions")

// BoltStore is a persistent transaction store using bbolt as the engine
// (https://github.com/etcd-io/bbolt). The transactions are serialized with the
// context given at creation.
//
// - implements store.Transactions
type BoltStore struct {
	db          *bbolt.DB
	hashFactory crypto.HashFactory
	context     serde.Context
	factory     tx.TransactionFactory
}

// NewBoltStore opens the database at the path and returns a transaction store
// on top of it.
func NewBoltStore(path string, f crypto.HashFactory, ctx serde.Context) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0666, &bbolt.Options{})
	if err != nil {
		return nil, xerrors.Errorf("failed to open db: %v", err)
	}

	s := &BoltStore{
		db:          db,
		hashFactory: f,
		context:     ctx,
		factory:     tx.NewTransactionFactory(),
	}

	return s, nil
}

// Get implements store.Transactions. It reads the transaction of the hash in a
// read-only database transaction.
func (s *BoltStore) Get(hash []byte) (tx.SignedTransaction, bool, error) {
	var stx tx.SignedTransaction
	found := false

	err := s.db.View(func(dbtx *bbolt.Tx) error {
		bucket := dbtx.Bucket(txBucket)
		if bucket == nil {
			return nil
		}

		data := bucket.Get(hash)
		if data == nil {
			return nil
		}

		var err error
		stx, err = s.factory.TransactionOf(s.context, data)
		if err != nil {
			return xerrors.Errorf("couldn't deserialize transaction: %v", err)
		}

		found = true

		return nil
	})
	if err != nil {
		return stx, false, xerrors.Errorf("couldn't read db: %v", err)
	}

	return stx, found, nil
}

// Put implements store.Transactions. It writes the transaction in a writable
// database transaction, unless the hash is already present.
func (s *BoltStore) Put(stx tx.SignedTransaction) error {
	hash, err := stx.Hash(s.hashFactory)
	if err != nil {
		return xerrors.Errorf("couldn't hash transaction: %v", err)
	}

	data, err := stx.Serialize(s.context)
	if err != nil {
		return xerrors.Errorf("couldn't serialize transaction: %v", err)
	}

	err = s.db.Update(func(dbtx *bbolt.Tx) error {
		bucket, err := dbtx.CreateBucketIfNotExists(txBucket)
		if err != nil {
			return xerrors.Errorf("failed to create bucket: %v", err)
		}

		if bucket.Get(hash) != nil {
			// Idempotent put: the transaction is already recorded.
			return nil
		}

		return bucket.Put(hash, data)
	})
	if err != nil {
		return xerrors.Errorf("couldn't write db: %v", err)
	}

	return nil
}

// Close closes the database. Any call will result in an error after this
// function is called.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

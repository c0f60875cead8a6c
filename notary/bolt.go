package notary

import (
	"go.dedis.ch/dvp/ledger"
	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var consumedBucket = []byte("consumed")

// BoltIndex is an index of consumed references persisted in a bbolt database
// so that a notary restart does not forget what it signed.
//
// - implements notary.Index
type BoltIndex struct {
	db *bbolt.DB
}

// NewBoltIndex opens the database at the path and returns the index.
func NewBoltIndex(path string) (*BoltIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("couldn't open db: %v", err)
	}

	err = db.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(consumedBucket)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("couldn't create bucket: %v", err)
	}

	return &BoltIndex{db: db}, nil
}

// Get implements notary.Index.
func (idx *BoltIndex) Get(ref ledger.StateRef) ([]byte, bool, error) {
	var hash []byte

	err := idx.db.View(func(btx *bbolt.Tx) error {
		value := btx.Bucket(consumedBucket).Get([]byte(ref.Key()))
		if value != nil {
			hash = append([]byte{}, value...)
		}

		return nil
	})
	if err != nil {
		return nil, false, xerrors.Errorf("couldn't read db: %v", err)
	}

	return hash, hash != nil, nil
}

// Put implements notary.Index.
func (idx *BoltIndex) Put(ref ledger.StateRef, hash []byte) error {
	err := idx.db.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(consumedBucket).Put([]byte(ref.Key()), hash)
	})
	if err != nil {
		return xerrors.Errorf("couldn't write db: %v", err)
	}

	return nil
}

// Close closes the underlying database.
func (idx *BoltIndex) Close() error {
	return idx.db.Close()
}

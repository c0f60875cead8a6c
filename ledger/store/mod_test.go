package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/cash"
	_ "go.dedis.ch/dvp/contracts/cash/json"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	_ "go.dedis.ch/dvp/ledger/tx/json"

	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/serde"
)

func makeTx(t *testing.T) tx.SignedTransaction {
	signer := schnorr.NewSigner()

	b := tx.NewBuilder(crypto.NewSha256Factory())

	state := cash.NewState(cash.NewAmount(10, "USD"), signer.GetPublicKey())
	notary := ledger.NewParty("notary", schnorr.NewSigner().GetPublicKey())

	require.NoError(t, b.AddOutput(state, notary))
	require.NoError(t, b.AddCommand(cash.Issue{}, signer.GetPublicKey()))
	require.NoError(t, b.SignWith(signer))

	stx, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	return stx
}

func TestInMemory_GetAndPut(t *testing.T) {
	f := crypto.NewSha256Factory()
	txs := NewInMemory(f)

	stx := makeTx(t)

	hash, err := stx.Hash(f)
	require.NoError(t, err)

	_, found, err := txs.Get(hash)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, txs.Put(stx))

	record, found, err := txs.Get(hash)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, record.GetSignatures(), 1)

	// Recording the same transaction again is a no-op.
	require.NoError(t, txs.Put(stx))
	require.Equal(t, 1, txs.Len())
}

func TestInMemory_Put_BadHash(t *testing.T) {
	txs := NewInMemory(fake.NewBadHashFactory(crypto.NewSha256Factory()))

	err := txs.Put(makeTx(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't hash transaction")
}

func TestBoltStore_GetAndPut(t *testing.T) {
	f := crypto.NewSha256Factory()
	ctx := fake.NewContextWithFormat(serde.FormatJSON)

	path := filepath.Join(t.TempDir(), "txs.db")

	txs, err := NewBoltStore(path, f, ctx)
	require.NoError(t, err)

	defer txs.Close()

	stx := makeTx(t)

	hash, err := stx.Hash(f)
	require.NoError(t, err)

	_, found, err := txs.Get(hash)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, txs.Put(stx))
	require.NoError(t, txs.Put(stx))

	record, found, err := txs.Get(hash)
	require.NoError(t, err)
	require.True(t, found)

	// The record survives the serialization roundtrip with the same digest.
	recordHash, err := record.Hash(f)
	require.NoError(t, err)
	require.Equal(t, hash, recordHash)
	require.Len(t, record.GetSignatures(), 1)
}

func TestBoltStore_BadPath(t *testing.T) {
	_, err := NewBoltStore(t.TempDir(), crypto.NewSha256Factory(), fake.NewContext())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open db")
}

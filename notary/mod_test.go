package notary

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/contracts/cash"
	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/ledger"
	"go.dedis.ch/dvp/ledger/tx"
	"go.dedis.ch/dvp/mino"
)

var testRef = ledger.NewStateRef(bytes.Repeat([]byte{0xaa}, 32), 0)

func makeSpendTx(t *testing.T, quantity uint64, notary ledger.Party) tx.SignedTransaction {
	signer := schnorr.NewSigner()

	b := tx.NewBuilder(crypto.NewSha256Factory())

	state := cash.NewState(cash.NewAmount(quantity, "USD"), signer.GetPublicKey())

	require.NoError(t, b.AddInput(testRef))
	require.NoError(t, b.AddOutput(state, notary))
	require.NoError(t, b.AddCommand(cash.Spend{}, signer.GetPublicKey()))
	require.NoError(t, b.SignWith(signer))

	stx, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	return stx
}

func makeService(index Index) (*Service, ledger.Party) {
	signer := schnorr.NewSigner()
	identity := ledger.NewParty("notary", signer.GetPublicKey())

	return NewService(identity, signer, crypto.NewSha256Factory(), index), identity
}

func TestService_Process(t *testing.T) {
	f := crypto.NewSha256Factory()

	srv, identity := makeService(NewInMemoryIndex())

	stx := makeSpendTx(t, 10, identity)

	resp, err := srv.Process(mino.Request{Message: NewRequest(stx)})
	require.NoError(t, err)

	signed, ok := resp.(Signed)
	require.True(t, ok)
	require.Equal(t, "notary", signed.GetSignature().GetIdentity())

	stx, err = stx.WithSignature(signed.GetSignature())
	require.NoError(t, err)
	require.NoError(t, stx.VerifyFullySigned(f))
}

func TestService_Process_Idempotent(t *testing.T) {
	srv, identity := makeService(NewInMemoryIndex())

	stx := makeSpendTx(t, 10, identity)

	resp, err := srv.Process(mino.Request{Message: NewRequest(stx)})
	require.NoError(t, err)
	require.IsType(t, Signed{}, resp)

	// Re-notarizing the same transaction must succeed.
	resp, err = srv.Process(mino.Request{Message: NewRequest(stx)})
	require.NoError(t, err)
	require.IsType(t, Signed{}, resp)
}

func TestService_Process_Conflict(t *testing.T) {
	f := crypto.NewSha256Factory()

	srv, identity := makeService(NewInMemoryIndex())

	first := makeSpendTx(t, 10, identity)
	second := makeSpendTx(t, 20, identity)

	_, err := srv.Process(mino.Request{Message: NewRequest(first)})
	require.NoError(t, err)

	resp, err := srv.Process(mino.Request{Message: NewRequest(second)})
	require.NoError(t, err)

	conflict, ok := resp.(Conflict)
	require.True(t, ok)
	require.True(t, conflict.GetRef().Equal(testRef))

	hash, err := first.Hash(f)
	require.NoError(t, err)
	require.Equal(t, hash, conflict.GetHash())
}

func TestService_Process_OutsideWindow(t *testing.T) {
	srv, _ := makeService(NewInMemoryIndex())
	srv.clock = func() time.Time {
		return time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	}

	signer := schnorr.NewSigner()

	b := tx.NewBuilder(crypto.NewSha256Factory())

	state := cash.NewState(cash.NewAmount(10, "USD"), signer.GetPublicKey())
	notary := ledger.NewParty("notary", schnorr.NewSigner().GetPublicKey())

	require.NoError(t, b.AddOutput(state, notary))
	require.NoError(t, b.AddCommand(cash.Issue{}, signer.GetPublicKey()))
	instant := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, b.SetTimeWindow(instant, time.Minute))
	require.NoError(t, b.SignWith(signer))

	stx, err := b.ToSignedTransaction(true)
	require.NoError(t, err)

	_, err = srv.Process(mino.Request{Message: NewRequest(stx)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not contain the current time")
}

func TestService_Process_Failures(t *testing.T) {
	srv, _ := makeService(NewInMemoryIndex())

	_, err := srv.Process(mino.Request{Message: fake.Message{}})
	require.EqualError(t, err, "invalid request of type 'fake.Message'")

	signer := schnorr.NewSigner()

	b := tx.NewBuilder(crypto.NewSha256Factory())

	state := cash.NewState(cash.NewAmount(10, "USD"), signer.GetPublicKey())
	notary := ledger.NewParty("notary", schnorr.NewSigner().GetPublicKey())

	require.NoError(t, b.AddInput(testRef))
	require.NoError(t, b.AddOutput(state, notary))
	require.NoError(t, b.AddCommand(cash.Spend{}, signer.GetPublicKey()))

	unsigned, err := b.ToSignedTransaction(false)
	require.NoError(t, err)

	_, err = srv.Process(mino.Request{Message: NewRequest(unsigned)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "transaction is not fully signed: missing signature from")

	identity := ledger.NewParty("notary", schnorr.NewSigner().GetPublicKey())
	stx := makeSpendTx(t, 10, identity)

	srv, _ = makeService(badIndex{errGet: fake.GetError()})
	_, err = srv.Process(mino.Request{Message: NewRequest(stx)})
	require.EqualError(t, err, fake.Err("couldn't read index"))

	srv, _ = makeService(badIndex{errPut: fake.GetError()})
	_, err = srv.Process(mino.Request{Message: NewRequest(stx)})
	require.EqualError(t, err, fake.Err("couldn't write index"))

	srv = NewService(identity, fake.NewBadSigner(), crypto.NewSha256Factory(), NewInMemoryIndex())
	_, err = srv.Process(mino.Request{Message: NewRequest(stx)})
	require.EqualError(t, err, fake.Err("couldn't sign transaction"))
}

func TestInMemoryIndex_GetAndPut(t *testing.T) {
	index := NewInMemoryIndex()

	_, found, err := index.Get(testRef)
	require.NoError(t, err)
	require.False(t, found)

	err = index.Put(testRef, []byte{0x01})
	require.NoError(t, err)

	hash, found, err := index.Get(testRef)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{0x01}, hash)
}

func TestBoltIndex_GetAndPut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	index, err := NewBoltIndex(path)
	require.NoError(t, err)

	defer index.Close()

	_, found, err := index.Get(testRef)
	require.NoError(t, err)
	require.False(t, found)

	err = index.Put(testRef, []byte{0x01})
	require.NoError(t, err)

	hash, found, err := index.Get(testRef)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte{0x01}, hash)
}

func TestBoltIndex_BadPath(t *testing.T) {
	_, err := NewBoltIndex(t.TempDir())
	require.Error(t, err)
	require.Contains(t, err.Error(), "couldn't open db")
}

// badIndex is an index that fails with the configured errors.
type badIndex struct {
	errGet error
	errPut error
}

func (idx badIndex) Get(ref ledger.StateRef) ([]byte, bool, error) {
	return nil, false, idx.errGet
}

func (idx badIndex) Put(ref ledger.StateRef, hash []byte) error {
	return idx.errPut
}

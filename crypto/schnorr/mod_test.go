package schnorr

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/dvp/internal/testing/fake"
	"go.dedis.ch/dvp/serde"
)

func init() {
	RegisterPublicKeyFormat(fake.GoodFormat, fake.Format{Msg: PublicKey{}})
	RegisterPublicKeyFormat(fake.BadFormat, fake.NewBadFormat())
	RegisterPublicKeyFormat(serde.Format("BAD_TYPE"), fake.Format{Msg: fake.Message{}})
	RegisterSignatureFormat(fake.GoodFormat, fake.Format{Msg: Signature{}})
	RegisterSignatureFormat(fake.BadFormat, fake.NewBadFormat())
	RegisterSignatureFormat(serde.Format("BAD_TYPE"), fake.Format{Msg: fake.Message{}})
}

func TestSigner_SignAndVerify(t *testing.T) {
	signer := NewSigner()

	sig, err := signer.Sign([]byte("deadbeef"))
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify([]byte("deadbeef"), sig)
	require.NoError(t, err)

	err = signer.GetPublicKey().Verify([]byte("tampered"), sig)
	require.Error(t, err)

	err = NewSigner().GetPublicKey().Verify([]byte("deadbeef"), sig)
	require.Error(t, err)
}

func TestPublicKey_New(t *testing.T) {
	signer := NewSigner()

	buffer, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	pubkey, err := NewPublicKey(buffer)
	require.NoError(t, err)
	require.True(t, pubkey.Equal(signer.GetPublicKey()))

	_, err = NewPublicKey([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestPublicKey_Verify_InvalidType(t *testing.T) {
	signer := NewSigner()

	err := signer.GetPublicKey().Verify(nil, fake.Signature{})
	require.EqualError(t, err, "invalid signature type 'fake.Signature'")
}

func TestPublicKey_Equal(t *testing.T) {
	signer := NewSigner()

	require.True(t, signer.GetPublicKey().Equal(signer.GetPublicKey()))
	require.False(t, signer.GetPublicKey().Equal(NewSigner().GetPublicKey()))
	require.False(t, signer.GetPublicKey().Equal(fake.PublicKey{}))
}

func TestPublicKey_MarshalText(t *testing.T) {
	signer := NewSigner()

	text, err := signer.GetPublicKey().MarshalText()
	require.NoError(t, err)
	require.Contains(t, string(text), "schnorr:")
}

func TestPublicKey_String(t *testing.T) {
	pubkey := NewSigner().GetPublicKey().(PublicKey)

	str := pubkey.String()
	require.Len(t, str, 8+16)
	require.Contains(t, str, "schnorr:")
}

func TestPublicKey_Serialize(t *testing.T) {
	pubkey := NewSigner().GetPublicKey().(PublicKey)

	data, err := pubkey.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, "fake format", string(data))

	_, err = pubkey.Serialize(fake.NewContextWithFormat(fake.BadFormat))
	require.EqualError(t, err, fake.Err("couldn't encode public key"))
}

func TestPublicKeyFactory_Deserialize(t *testing.T) {
	factory := NewPublicKeyFactory()

	msg, err := factory.Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.Equal(t, PublicKey{}, msg)

	_, err = factory.Deserialize(fake.NewContextWithFormat(fake.BadFormat), nil)
	require.EqualError(t, err, fake.Err("couldn't decode public key"))

	_, err = factory.Deserialize(fake.NewContextWithFormat(serde.Format("BAD_TYPE")), nil)
	require.EqualError(t, err, "invalid public key of type 'fake.Message'")
}

func TestPublicKeyFactory_FromBytes(t *testing.T) {
	signer := NewSigner()

	buffer, err := signer.GetPublicKey().MarshalBinary()
	require.NoError(t, err)

	pubkey, err := NewPublicKeyFactory().FromBytes(buffer)
	require.NoError(t, err)
	require.True(t, pubkey.Equal(signer.GetPublicKey()))

	_, err = NewPublicKeyFactory().FromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestSignature_Equal(t *testing.T) {
	sig := NewSignature([]byte{1, 2})

	require.True(t, sig.Equal(NewSignature([]byte{1, 2})))
	require.False(t, sig.Equal(NewSignature([]byte{3})))
	require.False(t, sig.Equal(fake.Signature{}))
}

func TestSignature_MarshalBinary(t *testing.T) {
	sig := NewSignature([]byte{1, 2, 3})

	buffer, err := sig.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, buffer)
}

func TestSignature_Serialize(t *testing.T) {
	sig := NewSignature([]byte{1})

	data, err := sig.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, "fake format", string(data))

	_, err = sig.Serialize(fake.NewContextWithFormat(fake.BadFormat))
	require.EqualError(t, err, fake.Err("couldn't encode signature"))
}

func TestSignatureFactory_Deserialize(t *testing.T) {
	factory := NewSignatureFactory()

	msg, err := factory.Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.Equal(t, Signature{}, msg)

	_, err = factory.Deserialize(fake.NewContextWithFormat(fake.BadFormat), nil)
	require.EqualError(t, err, fake.Err("couldn't decode signature"))

	_, err = factory.Deserialize(fake.NewContextWithFormat(serde.Format("BAD_TYPE")), nil)
	require.EqualError(t, err, "invalid signature of type 'fake.Message'")
}

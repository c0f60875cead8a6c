package fake

import (
	"hash"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/serde"
)

// PublicKey is a fake implementation of a public key.
//
// - implements crypto.PublicKey
type PublicKey struct {
	err       error
	verifyErr error
}

// NewBadPublicKey returns a public key that produces errors.
func NewBadPublicKey() PublicKey {
	return PublicKey{err: fakeErr, verifyErr: fakeErr}
}

// NewInvalidPublicKey returns a public key that fails the verifications.
func NewInvalidPublicKey() PublicKey {
	return PublicKey{verifyErr: fakeErr}
}

// Verify implements crypto.PublicKey.
func (pk PublicKey) Verify([]byte, crypto.Signature) error {
	return pk.verifyErr
}

// Equal implements crypto.PublicKey.
func (pk PublicKey) Equal(other interface{}) bool {
	_, ok := other.(PublicKey)
	return ok
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return []byte("PK"), pk.err
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte("PK"), pk.err
}

// String implements fmt.Stringer.
func (pk PublicKey) String() string {
	return "fake.PublicKey"
}

// Serialize implements serde.Message.
func (pk PublicKey) Serialize(ctx serde.Context) ([]byte, error) {
	return []byte(`{}`), pk.err
}

// Signature is a fake implementation of a signature.
//
// - implements crypto.Signature
type Signature struct {
	err error
}

// NewBadSignature returns a signature that produces errors.
func NewBadSignature() Signature {
	return Signature{err: fakeErr}
}

// Equal implements crypto.Signature.
func (s Signature) Equal(other crypto.Signature) bool {
	_, ok := other.(Signature)
	return ok
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Signature) MarshalBinary() ([]byte, error) {
	return []byte("SIG"), s.err
}

// Serialize implements serde.Message.
func (s Signature) Serialize(ctx serde.Context) ([]byte, error) {
	return []byte(`{}`), s.err
}

// Signer is a fake implementation of a signer.
//
// - implements crypto.Signer
type Signer struct {
	err    error
	pubkey crypto.PublicKey
}

// NewSigner returns a signer always producing the same signature.
func NewSigner() Signer {
	return Signer{pubkey: PublicKey{}}
}

// NewBadSigner returns a signer that produces errors.
func NewBadSigner() Signer {
	return Signer{err: fakeErr, pubkey: PublicKey{}}
}

// NewSignerWithPublicKey returns a signer with the given public key.
func NewSignerWithPublicKey(k crypto.PublicKey) Signer {
	return Signer{pubkey: k}
}

// GetPublicKeyFactory implements crypto.Signer.
func (s Signer) GetPublicKeyFactory() crypto.PublicKeyFactory {
	return PublicKeyFactory{}
}

// GetSignatureFactory implements crypto.Signer.
func (s Signer) GetSignatureFactory() crypto.SignatureFactory {
	return SignatureFactory{}
}

// GetPublicKey implements crypto.Signer.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return s.pubkey
}

// Sign implements crypto.Signer.
func (s Signer) Sign([]byte) (crypto.Signature, error) {
	return Signature{}, s.err
}

// PublicKeyFactory is a fake implementation of a public key factory.
//
// - implements crypto.PublicKeyFactory
type PublicKeyFactory struct {
	err error
}

// NewBadPublicKeyFactory returns a factory that produces errors.
func NewBadPublicKeyFactory() PublicKeyFactory {
	return PublicKeyFactory{err: fakeErr}
}

// Deserialize implements serde.Factory.
func (f PublicKeyFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return PublicKey{}, f.err
}

// PublicKeyOf implements crypto.PublicKeyFactory.
func (f PublicKeyFactory) PublicKeyOf(ctx serde.Context, data []byte) (crypto.PublicKey, error) {
	return PublicKey{}, f.err
}

// FromBytes implements crypto.PublicKeyFactory.
func (f PublicKeyFactory) FromBytes(data []byte) (crypto.PublicKey, error) {
	return PublicKey{}, f.err
}

// SignatureFactory is a fake implementation of a signature factory.
//
// - implements crypto.SignatureFactory
type SignatureFactory struct {
	err error
}

// NewBadSignatureFactory returns a factory that produces errors.
func NewBadSignatureFactory() SignatureFactory {
	return SignatureFactory{err: fakeErr}
}

// Deserialize implements serde.Factory.
func (f SignatureFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return Signature{}, f.err
}

// SignatureOf implements crypto.SignatureFactory.
func (f SignatureFactory) SignatureOf(ctx serde.Context, data []byte) (crypto.Signature, error) {
	return Signature{}, f.err
}

// hashWriter is a hash that can fail on write.
type hashWriter struct {
	hash.Hash
	err error
}

func (w hashWriter) Write(data []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	return w.Hash.Write(data)
}

// HashFactory is a fake implementation of a hash factory.
//
// - implements crypto.HashFactory
type HashFactory struct {
	inner crypto.HashFactory
	err   error
}

// NewHashFactory returns a factory wrapping the inner one.
func NewHashFactory(inner crypto.HashFactory) HashFactory {
	return HashFactory{inner: inner}
}

// NewBadHashFactory returns a factory producing hashes that fail on write.
func NewBadHashFactory(inner crypto.HashFactory) HashFactory {
	return HashFactory{inner: inner, err: fakeErr}
}

// New implements crypto.HashFactory.
func (f HashFactory) New() hash.Hash {
	return hashWriter{Hash: f.inner.New(), err: f.err}
}

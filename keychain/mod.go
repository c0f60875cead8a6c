// Package keychain defines the key management collaborator.
//
// The key manager owns the private keys of a node. The protocol state
// machines never touch a private key directly: they ask the key manager to
// sign a digest for a given public key, or to mint a fresh key pair when an
// unlinkable ownership key is needed.
package keychain

import (
	"sync"

	"go.dedis.ch/dvp/crypto"
	"go.dedis.ch/dvp/crypto/schnorr"
	"golang.org/x/xerrors"
)

// KeyManager is the interface of the key management service.
type KeyManager interface {
	// FreshKey mints a new key pair and returns its public key. The private
	// key stays inside the manager.
	FreshKey() (crypto.PublicKey, error)

	// Sign returns a signature of the message for the public key, or an error
	// when the key is not owned by the manager.
	Sign(msg []byte, key crypto.PublicKey) (crypto.Signature, error)

	// SignerFor returns a signer bound to the public key, or an error when the
	// key is not owned by the manager.
	SignerFor(key crypto.PublicKey) (crypto.Signer, error)
}

// InMemory is a key manager that keeps the key pairs in memory.
//
// - implements keychain.KeyManager
type InMemory struct {
	sync.Mutex

	signers map[string]crypto.Signer
}

// NewInMemory creates a new empty key manager.
func NewInMemory() *InMemory {
	return &InMemory{
		signers: make(map[string]crypto.Signer),
	}
}

// Import adds an existing signer to the manager and returns its public key.
func (m *InMemory) Import(signer crypto.Signer) (crypto.PublicKey, error) {
	pubkey := signer.GetPublicKey()

	key, err := keyOf(pubkey)
	if err != nil {
		return nil, err
	}

	m.Lock()
	m.signers[key] = signer
	m.Unlock()

	return pubkey, nil
}

// FreshKey implements keychain.KeyManager. It mints a new schnorr key pair and
// returns the public key.
func (m *InMemory) FreshKey() (crypto.PublicKey, error) {
	return m.Import(schnorr.NewSigner())
}

// Sign implements keychain.KeyManager. It signs the message with the private
// key matching the public key.
func (m *InMemory) Sign(msg []byte, key crypto.PublicKey) (crypto.Signature, error) {
	signer, err := m.SignerFor(key)
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, xerrors.Errorf("couldn't sign: %v", err)
	}

	return sig, nil
}

// SignerFor implements keychain.KeyManager. It returns the signer bound to the
// public key.
func (m *InMemory) SignerFor(pubkey crypto.PublicKey) (crypto.Signer, error) {
	key, err := keyOf(pubkey)
	if err != nil {
		return nil, err
	}

	m.Lock()
	signer := m.signers[key]
	m.Unlock()

	if signer == nil {
		return nil, xerrors.Errorf("key '%v' is not owned by the manager", pubkey)
	}

	return signer, nil
}

func keyOf(pubkey crypto.PublicKey) (string, error) {
	buffer, err := pubkey.MarshalBinary()
	if err != nil {
		return "", xerrors.Errorf("couldn't marshal public key: %v", err)
	}

	return string(buffer), nil
}

package crypto

import (
	"crypto/sha256"
	"hash"
)

// hashFactory is a hash factory that is using the SHA-256 algorithm.
//
// - implements crypto.HashFactory
type hashFactory struct{}

// NewSha256Factory returns a new instance of the factory.
func NewSha256Factory() HashFactory {
	return hashFactory{}
}

// New implements crypto.HashFactory. It returns a new SHA-256 hasher.
func (f hashFactory) New() hash.Hash {
	return sha256.New()
}

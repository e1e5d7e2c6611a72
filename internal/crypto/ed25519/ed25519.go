// Package ed25519 wraps crypto/ed25519 with ZIP-215 compliant signature verification.
package ed25519

import (
	"crypto/ed25519"
	"io"

	"github.com/hdevalence/ed25519consensus"

	"github.com/eigerco/jamtarget/internal/crypto"
)

type PrivateKey = ed25519.PrivateKey

// GenerateKey uses the standard library's key generation.
func GenerateKey(rand io.Reader) (crypto.Ed25519PublicKey, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return crypto.Ed25519PublicKey{}, nil, err
	}
	return crypto.Ed25519PublicKey(pub), priv, nil
}

// NewKeyFromSeed uses the standard library's function.
func NewKeyFromSeed(seed []byte) (crypto.Ed25519PublicKey, PrivateKey) {
	priv := ed25519.NewKeyFromSeed(seed)
	return crypto.Ed25519PublicKey(priv.Public().(ed25519.PublicKey)), priv
}

// Sign uses the standard library's signing function.
func Sign(privateKey PrivateKey, message []byte) crypto.Ed25519Signature {
	return crypto.Ed25519Signature(ed25519.Sign(privateKey, message))
}

// Verify uses the hdevalence/ed25519consensus library for
// ZIP-215 compliant verification.
func Verify(publicKey crypto.Ed25519PublicKey, message []byte, sig crypto.Ed25519Signature) bool {
	return ed25519consensus.Verify(publicKey[:], message, sig[:])
}

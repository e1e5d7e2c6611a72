// Package bandersnatch verifies Bandersnatch IETF VRF and ring VRF signatures.
// The curve arithmetic lives in a native library loaded at runtime.
package bandersnatch

import (
	"github.com/eigerco/jamtarget/internal/crypto"
)

// Verifier is everything the state transition needs from Bandersnatch.
type Verifier interface {
	// Verify checks an IETF VRF signature over (context, message) and returns its output hash Y(sig).
	Verify(pub crypto.BandersnatchPublicKey, context, message []byte, sig crypto.BandersnatchSignature) (crypto.Hash, bool)
	// OutputHash returns Y(sig) without verifying the signature.
	OutputHash(sig crypto.BandersnatchSignature) (crypto.Hash, error)
	// RingVerify checks an anonymous ring VRF signature against a ring commitment and returns its output hash.
	RingVerify(ringSize int, commitment crypto.RingCommitment, context, message []byte, sig crypto.RingVrfSignature) (crypto.Hash, bool)
	// RingCommitment computes the commitment (γ_z) of a set of keys.
	RingCommitment(keys []crypto.BandersnatchPublicKey) (crypto.RingCommitment, error)
}

// Insecure accepts every signature and derives VRF outputs by hashing the
// output point bytes. It exists for tests and for running without the native
// library; it must never be used to judge real chains.
type Insecure struct{}

func (Insecure) Verify(_ crypto.BandersnatchPublicKey, _, _ []byte, sig crypto.BandersnatchSignature) (crypto.Hash, bool) {
	return crypto.HashData(sig[:32]), true
}

func (Insecure) OutputHash(sig crypto.BandersnatchSignature) (crypto.Hash, error) {
	return crypto.HashData(sig[:32]), nil
}

func (Insecure) RingVerify(_ int, _ crypto.RingCommitment, _, _ []byte, sig crypto.RingVrfSignature) (crypto.Hash, bool) {
	return crypto.HashData(sig[:32]), true
}

func (Insecure) RingCommitment(keys []crypto.BandersnatchPublicKey) (crypto.RingCommitment, error) {
	buf := make([]byte, 0, len(keys)*crypto.BandersnatchSize)
	for _, k := range keys {
		buf = append(buf, k[:]...)
	}
	var c crypto.RingCommitment
	h := crypto.HashData(buf)
	copy(c[:], h[:])
	return c, nil
}

package crypto

import (
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type Ed25519PublicKey [Ed25519PublicSize]byte
type Ed25519Signature [Ed25519SignatureSize]byte
type BlsKey [BLSSize]byte
type BandersnatchPublicKey [BandersnatchSize]byte
type BandersnatchSignature [BandersnatchSignatureSize]byte
type RingVrfSignature [RingVrfSignatureSize]byte
type MetadataKey [MetadataSize]byte
type RingCommitment [BandersnatchRingSize]byte

// ValidatorKey is the 336 octet validator key set (k ∈ K).
type ValidatorKey struct {
	Bandersnatch BandersnatchPublicKey // k_b
	Ed25519      Ed25519PublicKey      // k_e
	Bls          BlsKey                // k_l
	Metadata     MetadataKey           // k_m
}

// IsZero reports whether every component is zero. Offending validators are
// replaced by zero keys (Φ).
func (k ValidatorKey) IsZero() bool {
	return k == ValidatorKey{}
}

var (
	Ed25519PublicKeyCodec = jam.FixedBytes(Ed25519PublicSize, func(k *Ed25519PublicKey) []byte { return k[:] })
	Ed25519SignatureCodec = jam.FixedBytes(Ed25519SignatureSize, func(k *Ed25519Signature) []byte { return k[:] })
	BandersnatchKeyCodec  = jam.FixedBytes(BandersnatchSize, func(k *BandersnatchPublicKey) []byte { return k[:] })
	BandersnatchSigCodec  = jam.FixedBytes(BandersnatchSignatureSize, func(k *BandersnatchSignature) []byte { return k[:] })
	RingVrfSignatureCodec = jam.FixedBytes(RingVrfSignatureSize, func(k *RingVrfSignature) []byte { return k[:] })
	RingCommitmentCodec   = jam.FixedBytes(BandersnatchRingSize, func(k *RingCommitment) []byte { return k[:] })
	Ed25519KeySetCodec    = jam.SortedSet(Ed25519PublicSize, func(k *Ed25519PublicKey) []byte { return k[:] })
	CompareEd25519Key     = jam.CompareBytes(func(k *Ed25519PublicKey) []byte { return k[:] })

	ValidatorKeyCodec = jam.Struct(
		jam.Field("bandersnatch", BandersnatchKeyCodec, func(k *ValidatorKey) *BandersnatchPublicKey { return &k.Bandersnatch }),
		jam.Field("ed25519", Ed25519PublicKeyCodec, func(k *ValidatorKey) *Ed25519PublicKey { return &k.Ed25519 }),
		jam.Field("bls", jam.FixedBytes(BLSSize, func(k *BlsKey) []byte { return k[:] }), func(k *ValidatorKey) *BlsKey { return &k.Bls }),
		jam.Field("metadata", jam.FixedBytes(MetadataSize, func(k *MetadataKey) []byte { return k[:] }), func(k *ValidatorKey) *MetadataKey { return &k.Metadata }),
	)
)

// ValidatorsCodec encodes a validator set of exactly n keys.
func ValidatorsCodec(n int) jam.Codec[[]ValidatorKey] {
	return jam.FixedSequence(ValidatorKeyCodec, n)
}

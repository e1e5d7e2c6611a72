package block

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// AssurancesExtrinsic E_A ∈ ⟦{a ∈ H, f ∈ b_C, v ∈ N_V, s ∈ V̄}⟧:V (eq. 11.10 v0.6.7)
type AssurancesExtrinsic []Assurance

// Assurance is a validator's attestation that it holds its erasure coded
// chunks for the cores set in Bitfield.
type Assurance struct {
	Anchor         crypto.Hash             // a, the parent hash
	Bitfield       jam.BitSequence         // f, one bit per core
	ValidatorIndex uint16                  // v
	Signature      crypto.Ed25519Signature // s
}

// IsForCore reports whether the assurance bitfield has the bit for core set.
func (a Assurance) IsForCore(core uint16) bool {
	return int(core) < len(a.Bitfield) && a.Bitfield[core]
}

func newAssuranceCodec(cores int) jam.Codec[Assurance] {
	return jam.Struct(
		jam.Field("anchor", crypto.HashCodec, func(a *Assurance) *crypto.Hash { return &a.Anchor }),
		jam.Field("bitfield", jam.FixedBitSequence(cores), func(a *Assurance) *jam.BitSequence { return &a.Bitfield }),
		jam.Field("validator_index", jam.U16, func(a *Assurance) *uint16 { return &a.ValidatorIndex }),
		jam.Field("signature", crypto.Ed25519SignatureCodec, func(a *Assurance) *crypto.Ed25519Signature { return &a.Signature }),
	)
}

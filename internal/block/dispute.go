package block

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// DisputeExtrinsic represents the structured input for submitting disputes.
//
// It includes:
//   - Verdicts: Aggregated judgments from auditors determining whether a work-report is valid.
//   - Culprits: Validators who guaranteed work-reports later found to be invalid.
//   - Faults: Auditors who issued judgments that contradict the finalized verdict.
//
// ED ≡ {EV, EC, EF}
// where EV ∈ ⟦{H, ⌊τ/E⌋ - N2, ⟦{{⊺,⊥}, NV, V̄}⟧⌊2/3V⌋+1}⟧
// and EC ∈ ⟦{H, H̄, V̄}⟧,
// EF ∈ ⟦{H, {⊺,⊥}, H̄, V̄}⟧ (eq. 10.2 v0.6.7)
type DisputeExtrinsic struct {
	Verdicts []Verdict
	Culprits []Culprit
	Faults   []Fault
}

// Verdict represents a collection of judgments made by validators on a work report.
type Verdict struct {
	ReportHash crypto.Hash   // H, hash of the work report
	EpochIndex jamtime.Epoch // ⌊τ/E⌋ - N2 (current or prev), epoch index
	Judgements []Judgement   // exactly ⌊2/3V⌋+1 judgements
}

// Judgement represents a single validator's judgement on a work report
type Judgement struct {
	IsValid        bool
	ValidatorIndex uint16
	Signature      crypto.Ed25519Signature
}

// Culprit is a validator who guaranteed a report later judged bad.
type Culprit struct {
	ReportHash                crypto.Hash
	ValidatorEd25519PublicKey crypto.Ed25519PublicKey
	Signature                 crypto.Ed25519Signature
}

// Fault is a validator whose judgement contradicts the verdict.
type Fault struct {
	ReportHash                crypto.Hash
	IsValid                   bool
	ValidatorEd25519PublicKey crypto.Ed25519PublicKey
	Signature                 crypto.Ed25519Signature
}

var (
	judgementCodec = jam.Struct(
		jam.Field("vote", jam.Bool, func(j *Judgement) *bool { return &j.IsValid }),
		jam.Field("index", jam.U16, func(j *Judgement) *uint16 { return &j.ValidatorIndex }),
		jam.Field("signature", crypto.Ed25519SignatureCodec, func(j *Judgement) *crypto.Ed25519Signature { return &j.Signature }),
	)

	culpritCodec = jam.Struct(
		jam.Field("target", crypto.HashCodec, func(c *Culprit) *crypto.Hash { return &c.ReportHash }),
		jam.Field("key", crypto.Ed25519PublicKeyCodec, func(c *Culprit) *crypto.Ed25519PublicKey { return &c.ValidatorEd25519PublicKey }),
		jam.Field("signature", crypto.Ed25519SignatureCodec, func(c *Culprit) *crypto.Ed25519Signature { return &c.Signature }),
	)

	faultCodec = jam.Struct(
		jam.Field("target", crypto.HashCodec, func(f *Fault) *crypto.Hash { return &f.ReportHash }),
		jam.Field("vote", jam.Bool, func(f *Fault) *bool { return &f.IsValid }),
		jam.Field("key", crypto.Ed25519PublicKeyCodec, func(f *Fault) *crypto.Ed25519PublicKey { return &f.ValidatorEd25519PublicKey }),
		jam.Field("signature", crypto.Ed25519SignatureCodec, func(f *Fault) *crypto.Ed25519Signature { return &f.Signature }),
	)

	epochCodec = jam.FixedUint[jamtime.Epoch](4)
)

func newVerdictCodec(superMajority int) jam.Codec[Verdict] {
	return jam.Struct(
		jam.Field("target", crypto.HashCodec, func(v *Verdict) *crypto.Hash { return &v.ReportHash }),
		jam.Field("age", epochCodec, func(v *Verdict) *jamtime.Epoch { return &v.EpochIndex }),
		jam.Field("votes", jam.FixedSequence(judgementCodec, superMajority), func(v *Verdict) *[]Judgement { return &v.Judgements }),
	)
}

func newDisputeExtrinsicCodec(superMajority int) jam.Codec[DisputeExtrinsic] {
	return jam.Struct(
		jam.Field("verdicts", jam.Sequence(newVerdictCodec(superMajority)), func(d *DisputeExtrinsic) *[]Verdict { return &d.Verdicts }),
		jam.Field("culprits", jam.Sequence(culpritCodec), func(d *DisputeExtrinsic) *[]Culprit { return &d.Culprits }),
		jam.Field("faults", jam.Sequence(faultCodec), func(d *DisputeExtrinsic) *[]Fault { return &d.Faults }),
	)
}

// CountPositive returns the number of judgements that say the report is valid.
func (v Verdict) CountPositive() int {
	n := 0
	for _, j := range v.Judgements {
		if j.IsValid {
			n++
		}
	}
	return n
}

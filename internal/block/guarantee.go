package block

import (
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// GuaranteesExtrinsic represents the E_G extrinsic
// EG ∈ ⟦{r ∈ R, t ∈ NT, a ∈ ⟦{NV, V̄}⟧2:3}⟧:C (eq. 11.23 v0.6.7)
type GuaranteesExtrinsic struct {
	Guarantees []Guarantee
}

// Guarantee represents a single guarantee within the E_G extrinsic
type Guarantee struct {
	WorkReport  WorkReport            // The work report being guaranteed
	Timeslot    jamtime.Timeslot      // The timeslot when this guarantee was made
	Credentials []CredentialSignature // The credentials proving the guarantee's validity
}

// CredentialSignature represents a single signature within the credential
type CredentialSignature struct {
	ValidatorIndex uint16                  // Index of the validator providing this signature
	Signature      crypto.Ed25519Signature // The Ed25519 signature
}

// WorkReport represents a work report in the JAM state
// R ≡ {s ∈ S, x ∈ X, c ∈ N_C, a ∈ H, o ∈ B, l ∈ ⟨H → H⟩, r ∈ ⟦L⟧1:I, g ∈ N_G} (eq. 11.2 v0.6.7)
type WorkReport struct {
	AvailabilitySpecification AvailabilitySpecification   // s
	RefinementContext         RefinementContext           // x
	CoreIndex                 uint16                      // c
	AuthorizerHash            crypto.Hash                 // a
	Output                    []byte                      // o, the authorizer output
	SegmentRootLookup         map[crypto.Hash]crypto.Hash // l
	WorkResults               []WorkResult                // r
	AuthGasUsed               uint64                      // g
}

// AvailabilitySpecification S ≡ {h ∈ H, l ∈ N_L, u ∈ H, e ∈ H, n ∈ N} (eq. 11.5 v0.6.7)
type AvailabilitySpecification struct {
	WorkPackageHash           crypto.Hash // h
	AuditableWorkBundleLength uint32      // l
	ErasureRoot               crypto.Hash // u
	SegmentRoot               crypto.Hash // e, the exports root
	SegmentCount              uint16      // n
}

// RefinementContext describes the context of the chain at the point that the report's corresponding work-package was evaluated.
//
//	X ≡ {a ∈ H, s ∈ H, b ∈ H, l ∈ H, t ∈ NT, p ∈ {[H]}} (eq. 11.4 v0.6.7)
type RefinementContext struct {
	Anchor                  RefinementContextAnchor
	LookupAnchor            RefinementContextLookupAnchor
	PrerequisiteWorkPackage []crypto.Hash
}

type RefinementContextAnchor struct {
	HeaderHash         crypto.Hash // a
	PosteriorStateRoot crypto.Hash // s
	PosteriorBeefyRoot crypto.Hash // b
}

type RefinementContextLookupAnchor struct {
	HeaderHash crypto.Hash      // l
	Timeslot   jamtime.Timeslot // t
}

// WorkResultError represents the type of error that occurred during work execution
type WorkResultError uint8

const (
	NoError                 WorkResultError = iota // Represents no error, successful execution
	OutOfGas                                       // ∞
	UnexpectedTermination                          // ☇
	InvalidNumberOfExports                         // ⊚
	DigestSizeLimitExceeded                        // ⊖
	CodeNotAvailable                               // BAD
	CodeTooLarge                                   // BIG
)

// WorkResult is the data conduit by which services' states may be altered through the computation done within a work-package.
// L ≡ {s ∈ N_S, c ∈ H, y ∈ H, g ∈ N_G, d ∈ B ∪ E, u ∈ N_G, i ∈ N, x ∈ N, z ∈ N, e ∈ N} (eq. 11.6 v0.6.7)
type WorkResult struct {
	ServiceId       ServiceId
	ServiceHashCode crypto.Hash
	PayloadHash     crypto.Hash
	GasLimit        uint64
	Output          WorkResultOutputOrError
	RefineLoad      RefineLoad
}

// RefineLoad is the resource usage of the refine step of one item.
type RefineLoad struct {
	GasUsed               uint64 // u
	SegmentsImportedCount uint16 // i
	ExtrinsicCount        uint16 // x
	ExtrinsicSize         uint32 // z
	SegmentsExportedCount uint16 // e
}

// WorkResultOutputOrError is B ∪ E. Error is NoError exactly when Output holds the blob.
type WorkResultOutputOrError struct {
	Error  WorkResultError
	Output []byte
}

func (o WorkResultOutputOrError) IsSuccessful() bool {
	return o.Error == NoError
}

// IsSuccessful checks if the work result is successful
func (r WorkResult) IsSuccessful() bool {
	return r.Output.IsSuccessful()
}

// NewSuccessfulWorkResult creates a new successful WorkResult
func NewSuccessfulWorkResult(serviceID ServiceId, serviceHashCode, payloadHash crypto.Hash, gasLimit uint64, output []byte) WorkResult {
	return WorkResult{
		ServiceId:       serviceID,
		ServiceHashCode: serviceHashCode,
		PayloadHash:     payloadHash,
		GasLimit:        gasLimit,
		Output:          WorkResultOutputOrError{Output: output},
	}
}

// NewErrorWorkResult creates a new error WorkResult
func NewErrorWorkResult(serviceID ServiceId, serviceHashCode, payloadHash crypto.Hash, gasLimit uint64, errorResult WorkResultError) WorkResult {
	return WorkResult{
		ServiceId:       serviceID,
		ServiceHashCode: serviceHashCode,
		PayloadHash:     payloadHash,
		GasLimit:        gasLimit,
		Output:          WorkResultOutputOrError{Error: errorResult},
	}
}

// TotalAccumulateGas is the sum of the accumulation gas limits of every result.
func (w WorkReport) TotalAccumulateGas() uint64 {
	var total uint64
	for _, r := range w.WorkResults {
		total += r.GasLimit
	}
	return total
}

// Dependencies is the set of work-package hashes the report depends on:
// its prerequisites and the keys of its segment root lookup.
func (w WorkReport) Dependencies() []crypto.Hash {
	deps := make([]crypto.Hash, 0, len(w.RefinementContext.PrerequisiteWorkPackage)+len(w.SegmentRootLookup))
	seen := make(map[crypto.Hash]struct{}, cap(deps))
	for _, h := range w.RefinementContext.PrerequisiteWorkPackage {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			deps = append(deps, h)
		}
	}
	for _, h := range jam.SortedKeys(w.SegmentRootLookup, crypto.CompareHash) {
		if _, ok := seen[h]; !ok {
			seen[h] = struct{}{}
			deps = append(deps, h)
		}
	}
	return deps
}

var WorkResultOutputCodec = jam.Union(
	jam.Case(uint8(NoError), jam.Blob,
		func(b []byte) WorkResultOutputOrError { return WorkResultOutputOrError{Output: b} },
		func(o WorkResultOutputOrError) ([]byte, bool) { return o.Output, o.Error == NoError },
	),
	errorCase(OutOfGas),
	errorCase(UnexpectedTermination),
	errorCase(InvalidNumberOfExports),
	errorCase(DigestSizeLimitExceeded),
	errorCase(CodeNotAvailable),
	errorCase(CodeTooLarge),
)

func errorCase(e WorkResultError) jam.Variant[WorkResultOutputOrError] {
	return jam.Case(uint8(e), jam.Nothing,
		func(jam.Empty) WorkResultOutputOrError { return WorkResultOutputOrError{Error: e} },
		func(o WorkResultOutputOrError) (jam.Empty, bool) { return jam.Empty{}, o.Error == e },
	)
}

var (
	AvailabilitySpecificationCodec = jam.Struct(
		jam.Field("hash", crypto.HashCodec, func(s *AvailabilitySpecification) *crypto.Hash { return &s.WorkPackageHash }),
		jam.Field("length", jam.U32, func(s *AvailabilitySpecification) *uint32 { return &s.AuditableWorkBundleLength }),
		jam.Field("erasure_root", crypto.HashCodec, func(s *AvailabilitySpecification) *crypto.Hash { return &s.ErasureRoot }),
		jam.Field("exports_root", crypto.HashCodec, func(s *AvailabilitySpecification) *crypto.Hash { return &s.SegmentRoot }),
		jam.Field("exports_count", jam.U16, func(s *AvailabilitySpecification) *uint16 { return &s.SegmentCount }),
	)

	RefinementContextCodec = jam.Struct(
		jam.Field("anchor", crypto.HashCodec, func(c *RefinementContext) *crypto.Hash { return &c.Anchor.HeaderHash }),
		jam.Field("state_root", crypto.HashCodec, func(c *RefinementContext) *crypto.Hash { return &c.Anchor.PosteriorStateRoot }),
		jam.Field("beefy_root", crypto.HashCodec, func(c *RefinementContext) *crypto.Hash { return &c.Anchor.PosteriorBeefyRoot }),
		jam.Field("lookup_anchor", crypto.HashCodec, func(c *RefinementContext) *crypto.Hash { return &c.LookupAnchor.HeaderHash }),
		jam.Field("lookup_anchor_slot", jamtime.TimeslotCodec, func(c *RefinementContext) *jamtime.Timeslot { return &c.LookupAnchor.Timeslot }),
		jam.Field("prerequisites", jam.Sequence(crypto.HashCodec), func(c *RefinementContext) *[]crypto.Hash { return &c.PrerequisiteWorkPackage }),
	)

	RefineLoadCodec = jam.Struct(
		jam.Field("gas_used", jam.Compact[uint64](), func(l *RefineLoad) *uint64 { return &l.GasUsed }),
		jam.Field("imports", jam.Compact[uint16](), func(l *RefineLoad) *uint16 { return &l.SegmentsImportedCount }),
		jam.Field("extrinsic_count", jam.Compact[uint16](), func(l *RefineLoad) *uint16 { return &l.ExtrinsicCount }),
		jam.Field("extrinsic_size", jam.Compact[uint32](), func(l *RefineLoad) *uint32 { return &l.ExtrinsicSize }),
		jam.Field("exports", jam.Compact[uint16](), func(l *RefineLoad) *uint16 { return &l.SegmentsExportedCount }),
	)

	WorkResultCodec = jam.Struct(
		jam.Field("service_id", ServiceIdCodec, func(r *WorkResult) *ServiceId { return &r.ServiceId }),
		jam.Field("code_hash", crypto.HashCodec, func(r *WorkResult) *crypto.Hash { return &r.ServiceHashCode }),
		jam.Field("payload_hash", crypto.HashCodec, func(r *WorkResult) *crypto.Hash { return &r.PayloadHash }),
		jam.Field("accumulate_gas", jam.U64, func(r *WorkResult) *uint64 { return &r.GasLimit }),
		jam.Field("result", WorkResultOutputCodec, func(r *WorkResult) *WorkResultOutputOrError { return &r.Output }),
		jam.Field("refine_load", RefineLoadCodec, func(r *WorkResult) *RefineLoad { return &r.RefineLoad }),
	)

	WorkReportCodec = jam.Struct(
		jam.Field("package_spec", AvailabilitySpecificationCodec, func(w *WorkReport) *AvailabilitySpecification { return &w.AvailabilitySpecification }),
		jam.Field("context", RefinementContextCodec, func(w *WorkReport) *RefinementContext { return &w.RefinementContext }),
		jam.Field("core_index", jam.U16, func(w *WorkReport) *uint16 { return &w.CoreIndex }),
		jam.Field("authorizer_hash", crypto.HashCodec, func(w *WorkReport) *crypto.Hash { return &w.AuthorizerHash }),
		jam.Field("auth_output", jam.Blob, func(w *WorkReport) *[]byte { return &w.Output }),
		jam.Field("segment_root_lookup", jam.SortedMap(crypto.HashCodec, crypto.HashCodec, crypto.CompareHash), func(w *WorkReport) *map[crypto.Hash]crypto.Hash { return &w.SegmentRootLookup }),
		jam.Field("results", jam.Sequence(WorkResultCodec), func(w *WorkReport) *[]WorkResult { return &w.WorkResults }),
		jam.Field("auth_gas_used", jam.Compact[uint64](), func(w *WorkReport) *uint64 { return &w.AuthGasUsed }),
	)

	credentialCodec = jam.Struct(
		jam.Field("validator_index", jam.U16, func(c *CredentialSignature) *uint16 { return &c.ValidatorIndex }),
		jam.Field("signature", crypto.Ed25519SignatureCodec, func(c *CredentialSignature) *crypto.Ed25519Signature { return &c.Signature }),
	)

	GuaranteeCodec = jam.Struct(
		jam.Field("report", WorkReportCodec, func(g *Guarantee) *WorkReport { return &g.WorkReport }),
		jam.Field("slot", jamtime.TimeslotCodec, func(g *Guarantee) *jamtime.Timeslot { return &g.Timeslot }),
		jam.Field("signatures", jam.Sequence(credentialCodec), func(g *Guarantee) *[]CredentialSignature { return &g.Credentials }),
	)

	GuaranteesExtrinsicCodec = jam.Transform(jam.Sequence(GuaranteeCodec),
		func(g []Guarantee) GuaranteesExtrinsic { return GuaranteesExtrinsic{Guarantees: g} },
		func(e GuaranteesExtrinsic) []Guarantee { return e.Guarantees },
	)
)

// Hash is H(E(w)).
func (w WorkReport) Hash() (crypto.Hash, error) {
	bb, err := jam.Marshal(WorkReportCodec, w)
	if err != nil {
		return crypto.Hash{}, err
	}
	return crypto.HashData(bb), nil
}

// Encode is E(w).
func (w WorkReport) Encode() ([]byte, error) {
	return jam.Marshal(WorkReportCodec, w)
}

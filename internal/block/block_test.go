package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

func tinyHeader(cfg chainspec.Config) Header {
	keys := make([]ValidatorKeys, cfg.NumberOfValidators)
	for i := range keys {
		keys[i].Bandersnatch[0] = byte(i)
		keys[i].Ed25519[0] = byte(i + 100)
	}
	tickets := make(WinningTicketMarker, cfg.EpochLength)
	for i := range tickets {
		tickets[i] = Ticket{Identifier: crypto.Hash{byte(i)}, EntryIndex: uint8(i % 2)}
	}
	return Header{
		ParentHash:           crypto.Hash{1},
		PriorStateRoot:       crypto.Hash{2},
		ExtrinsicHash:        crypto.Hash{3},
		TimeSlotIndex:        jamtime.Timeslot(42),
		EpochMarker:          &EpochMarker{Entropy: crypto.Hash{4}, TicketsEntropy: crypto.Hash{5}, Keys: keys},
		WinningTicketsMarker: &tickets,
		OffendersMarkers:     []crypto.Ed25519PublicKey{{9}},
		BlockAuthorIndex:     3,
		VRFSignature:         crypto.BandersnatchSignature{7},
		BlockSealSignature:   crypto.BandersnatchSignature{8},
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	cfg := chainspec.Tiny()
	c := NewCodecs(cfg)
	h := tinyHeader(cfg)

	bb, err := jam.Marshal(c.Header, h)
	require.NoError(t, err)

	unsigned, err := c.UnsignedHeaderBytes(h)
	require.NoError(t, err)
	assert.Equal(t, bb[:len(bb)-crypto.BandersnatchSignatureSize], unsigned)

	decoded, err := jam.Unmarshal(c.Header, bb)
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestHeaderHashDependsOnSeal(t *testing.T) {
	cfg := chainspec.Tiny()
	c := NewCodecs(cfg)
	h := tinyHeader(cfg)

	h1, err := c.HeaderHash(h)
	require.NoError(t, err)
	h.BlockSealSignature[0] ^= 0xff
	h2, err := c.HeaderHash(h)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestEpochMarkerRequiresValidatorCount(t *testing.T) {
	cfg := chainspec.Tiny()
	c := NewCodecs(cfg)
	h := tinyHeader(cfg)
	h.EpochMarker.Keys = h.EpochMarker.Keys[:2]

	_, err := jam.Marshal(c.Header, h)
	assert.ErrorIs(t, err, jam.ErrFixedLength)
}

func TestWorkResultOutputEncoding(t *testing.T) {
	ok := NewSuccessfulWorkResult(1, crypto.Hash{}, crypto.Hash{}, 10, []byte{0xaa, 0xbb})
	bb, err := jam.Marshal(WorkResultOutputCodec, ok.Output)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 2, 0xaa, 0xbb}, bb)

	failed := NewErrorWorkResult(1, crypto.Hash{}, crypto.Hash{}, 10, CodeTooLarge)
	bb, err = jam.Marshal(WorkResultOutputCodec, failed.Output)
	require.NoError(t, err)
	assert.Equal(t, []byte{6}, bb)

	decoded, err := jam.Unmarshal(WorkResultOutputCodec, []byte{2})
	require.NoError(t, err)
	assert.Equal(t, UnexpectedTermination, decoded.Error)
	assert.False(t, decoded.IsSuccessful())

	_, err = jam.Unmarshal(WorkResultOutputCodec, []byte{7})
	assert.Error(t, err)
}

func TestWorkReportRoundTrip(t *testing.T) {
	report := WorkReport{
		AvailabilitySpecification: AvailabilitySpecification{WorkPackageHash: crypto.Hash{1}, AuditableWorkBundleLength: 100, SegmentCount: 2},
		RefinementContext: RefinementContext{
			Anchor:                  RefinementContextAnchor{HeaderHash: crypto.Hash{2}},
			LookupAnchor:            RefinementContextLookupAnchor{HeaderHash: crypto.Hash{3}, Timeslot: 5},
			PrerequisiteWorkPackage: []crypto.Hash{{4}},
		},
		CoreIndex:         1,
		AuthorizerHash:    crypto.Hash{5},
		Output:            []byte("auth"),
		SegmentRootLookup: map[crypto.Hash]crypto.Hash{{7}: {8}, {6}: {9}},
		WorkResults: []WorkResult{
			NewSuccessfulWorkResult(42, crypto.Hash{10}, crypto.Hash{11}, 1000, []byte("out")),
		},
		AuthGasUsed: 300,
	}
	report.WorkResults[0].RefineLoad = RefineLoad{GasUsed: 70000, SegmentsImportedCount: 1, ExtrinsicSize: 1 << 20}

	bb, err := report.Encode()
	require.NoError(t, err)
	decoded, err := jam.Unmarshal(WorkReportCodec, bb)
	require.NoError(t, err)
	assert.Equal(t, report, decoded)

	assert.Equal(t, []crypto.Hash{{4}, {6}, {7}}, report.Dependencies())
	assert.Equal(t, uint64(1000), report.TotalAccumulateGas())
}

func TestBlockRoundTrip(t *testing.T) {
	cfg := chainspec.Tiny()
	c := NewCodecs(cfg)

	votes := make([]Judgement, cfg.ValidatorsSuperMajority())
	for i := range votes {
		votes[i] = Judgement{IsValid: i%2 == 0, ValidatorIndex: uint16(i)}
	}
	b := Block{
		Header: tinyHeader(cfg),
		Extrinsic: Extrinsic{
			ET: TicketExtrinsic{TicketProofs: []TicketProof{{EntryIndex: 1}}},
			EP: PreimageExtrinsic{{ServiceIndex: 3, Data: []byte("blob")}},
			EG: GuaranteesExtrinsic{Guarantees: []Guarantee{{
				WorkReport:  WorkReport{SegmentRootLookup: map[crypto.Hash]crypto.Hash{}, WorkResults: []WorkResult{NewErrorWorkResult(1, crypto.Hash{}, crypto.Hash{}, 1, OutOfGas)}},
				Timeslot:    41,
				Credentials: []CredentialSignature{{ValidatorIndex: 0}, {ValidatorIndex: 1}},
			}}},
			EA: AssurancesExtrinsic{{Anchor: crypto.Hash{1}, Bitfield: jam.BitSequence{true, false}, ValidatorIndex: 2}},
			ED: DisputeExtrinsic{
				Verdicts: []Verdict{{ReportHash: crypto.Hash{5}, EpochIndex: 3, Judgements: votes}},
				Culprits: []Culprit{{ReportHash: crypto.Hash{5}}},
				Faults:   []Fault{{ReportHash: crypto.Hash{5}, IsValid: true}},
			},
		},
	}

	bb, err := jam.Marshal(c.Block, b)
	require.NoError(t, err)
	decoded, err := jam.Unmarshal(c.Block, bb)
	require.NoError(t, err)
	assert.Equal(t, b, decoded)
	assert.Equal(t, 3, decoded.Extrinsic.ED.Verdicts[0].CountPositive())
	assert.True(t, decoded.Extrinsic.EA[0].IsForCore(0))
	assert.False(t, decoded.Extrinsic.EA[0].IsForCore(1))
}

func TestEmptyExtrinsicHash(t *testing.T) {
	c := NewCodecs(chainspec.Tiny())

	got, err := c.ExtrinsicHash(Extrinsic{})
	require.NoError(t, err)

	empty := crypto.HashData([]byte{0})
	emptyDisputes := crypto.HashData([]byte{0, 0, 0})
	var bb []byte
	for _, h := range []crypto.Hash{empty, empty, empty, empty, emptyDisputes} {
		bb = append(bb, h[:]...)
	}
	assert.Equal(t, crypto.HashData(bb), got)
}

package guaranteeing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/constants"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/ed25519"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
)

const testService = block.ServiceId(1)

type fixture struct {
	cfg  chainspec.Config
	in   Input
	keys []ed25519.PrivateKey
}

func newFixture() *fixture {
	cfg := chainspec.Tiny()
	f := &fixture{cfg: cfg, keys: make([]ed25519.PrivateKey, cfg.NumberOfValidators)}
	validators := make(safrole.ValidatorsData, cfg.NumberOfValidators)
	for i := range f.keys {
		seed := make([]byte, 32)
		seed[2] = byte(i + 1)
		validators[i].Ed25519, f.keys[i] = ed25519.NewKeyFromSeed(seed)
	}
	f.in = Input{
		Timeslot:           5,
		Entropy:            state.EntropyPool{{0}, {1}, {2}, {3}},
		CurrentValidators:  validators,
		ArchivedValidators: validators,
		AuthorizersPool:    state.CoreAuthorizersPool{{{0xa0}}, {{0xa1}}},
		Services: service.ServiceState{
			testService: {CodeHash: crypto.Hash{0xc0}, GasLimitForAccumulator: 10},
		},
		RecentHistory: state.RecentHistory{BlockHistory: []state.BlockState{{
			HeaderHash: crypto.Hash{0xbb},
			StateRoot:  crypto.Hash{0x5e},
			BeefyRoot:  crypto.Hash{0xbe},
			Reported:   map[crypto.Hash]crypto.Hash{{0x99}: {0x98}},
		}}},
		IntermediateAssignments: make(state.CoreAssignments, cfg.NumberOfCores),
	}
	return f
}

func (f *fixture) report(core uint16, packageHash crypto.Hash) block.WorkReport {
	return block.WorkReport{
		AvailabilitySpecification: block.AvailabilitySpecification{WorkPackageHash: packageHash, SegmentRoot: crypto.Hash{0xee}},
		RefinementContext: block.RefinementContext{
			Anchor: block.RefinementContextAnchor{
				HeaderHash:         crypto.Hash{0xbb},
				PosteriorStateRoot: crypto.Hash{0x5e},
				PosteriorBeefyRoot: crypto.Hash{0xbe},
			},
			LookupAnchor: block.RefinementContextLookupAnchor{Timeslot: 1},
		},
		CoreIndex:      core,
		AuthorizerHash: f.in.AuthorizersPool[core][0],
		WorkResults: []block.WorkResult{
			block.NewSuccessfulWorkResult(testService, crypto.Hash{0xc0}, crypto.Hash{1}, 100, []byte("out")),
		},
	}
}

// guarantors returns the validators assigned to the core in the current rotation.
func (f *fixture) guarantors(core uint16) []uint16 {
	var out []uint16
	for v, c := range PermuteAssignments(f.cfg, f.in.Entropy[2], f.in.Timeslot) {
		if c == uint32(core) {
			out = append(out, uint16(v))
		}
	}
	return out
}

func (f *fixture) guarantee(t *testing.T, report block.WorkReport, signers ...uint16) block.Guarantee {
	h, err := report.Hash()
	require.NoError(t, err)
	g := block.Guarantee{WorkReport: report, Timeslot: f.in.Timeslot}
	for _, v := range signers {
		g.Credentials = append(g.Credentials, block.CredentialSignature{
			ValidatorIndex: v,
			Signature:      ed25519.Sign(f.keys[v], append([]byte(constants.SignatureContextGuarantee), h[:]...)),
		})
	}
	return g
}

func TestPermuteAssignments(t *testing.T) {
	cfg := chainspec.Tiny()
	assignments := PermuteAssignments(cfg, crypto.Hash{7}, 0)
	require.Len(t, assignments, int(cfg.NumberOfValidators))

	perCore := make(map[uint32]int)
	for _, c := range assignments {
		perCore[c]++
	}
	for c := range uint32(cfg.NumberOfCores) {
		assert.Equal(t, cfg.GuarantorsPerCore(), perCore[c])
	}

	rotated := PermuteAssignments(cfg, crypto.Hash{7}, jamtime.Timeslot(cfg.ValidatorRotationPeriod))
	for i := range assignments {
		assert.Equal(t, (assignments[i]+1)%uint32(cfg.NumberOfCores), rotated[i])
	}
}

func TestValidateGuarantees(t *testing.T) {
	f := newFixture()
	signers := f.guarantors(0)[:2]
	report := f.report(0, crypto.Hash{0x01})
	f.in.Guarantees = block.GuaranteesExtrinsic{Guarantees: []block.Guarantee{f.guarantee(t, report, signers...)}}

	out, err := ValidateGuarantees(f.cfg, f.in)
	require.NoError(t, err)
	require.NotNil(t, out.CoreAssignments[0])
	assert.Equal(t, f.in.Timeslot, out.CoreAssignments[0].Time)
	assert.Nil(t, f.in.IntermediateAssignments[0], "input assignments are not modified")
	assert.Len(t, out.Reporters, 2)
	assert.Equal(t, map[crypto.Hash]crypto.Hash{{0x01}: {0xee}}, out.Reported)
	assert.Equal(t, []block.WorkReport{report}, out.Reports)
}

func TestValidateGuaranteesErrors(t *testing.T) {
	testCases := []struct {
		name  string
		build func(t *testing.T, f *fixture) []block.Guarantee
		err   error
	}{
		{
			name: "package already reported in recent history",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				return []block.Guarantee{f.guarantee(t, f.report(0, crypto.Hash{0x99}), f.guarantors(0)[:2]...)}
			},
			err: ErrWorkPackageInPipeline,
		},
		{
			name: "package already accumulated",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				f.in.AccumulationHistory = state.AccumulationHistory{{{0x01}: {}}}
				return []block.Guarantee{f.guarantee(t, f.report(0, crypto.Hash{0x01}), f.guarantors(0)[:2]...)}
			},
			err: ErrWorkPackageInPipeline,
		},
		{
			name: "single credential",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				return []block.Guarantee{f.guarantee(t, f.report(0, crypto.Hash{0x01}), f.guarantors(0)[0])}
			},
			err: ErrInsufficientGuarantees,
		},
		{
			name: "guarantor of another core",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				signers := []uint16{f.guarantors(0)[0], f.guarantors(1)[0]}
				if signers[0] > signers[1] {
					signers[0], signers[1] = signers[1], signers[0]
				}
				return []block.Guarantee{f.guarantee(t, f.report(0, crypto.Hash{0x01}), signers...)}
			},
			err: ErrWrongAssignment,
		},
		{
			name: "guarantor is an offender",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				signers := f.guarantors(0)[:2]
				f.in.Offenders = []crypto.Ed25519PublicKey{f.in.CurrentValidators[signers[1]].Ed25519}
				return []block.Guarantee{f.guarantee(t, f.report(0, crypto.Hash{0x01}), signers...)}
			},
			err: ErrBannedValidator,
		},
		{
			name: "unauthorized",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				r := f.report(0, crypto.Hash{0x01})
				r.AuthorizerHash = crypto.Hash{0xff}
				return []block.Guarantee{f.guarantee(t, r, f.guarantors(0)[:2]...)}
			},
			err: ErrCoreUnauthorized,
		},
		{
			name: "core engaged",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				f.in.IntermediateAssignments[0] = &state.Assignment{}
				return []block.Guarantee{f.guarantee(t, f.report(0, crypto.Hash{0x01}), f.guarantors(0)[:2]...)}
			},
			err: ErrCoreEngaged,
		},
		{
			name: "unknown anchor",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				r := f.report(0, crypto.Hash{0x01})
				r.RefinementContext.Anchor.HeaderHash = crypto.Hash{0x01}
				return []block.Guarantee{f.guarantee(t, r, f.guarantors(0)[:2]...)}
			},
			err: ErrAnchorNotRecent,
		},
		{
			name: "bad code hash",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				r := f.report(0, crypto.Hash{0x01})
				r.WorkResults[0].ServiceHashCode = crypto.Hash{0x01}
				return []block.Guarantee{f.guarantee(t, r, f.guarantors(0)[:2]...)}
			},
			err: ErrBadCodeHash,
		},
		{
			name: "gas below the service minimum",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				r := f.report(0, crypto.Hash{0x01})
				r.WorkResults[0].GasLimit = 1
				return []block.Guarantee{f.guarantee(t, r, f.guarantors(0)[:2]...)}
			},
			err: ErrServiceItemGasTooLow,
		},
		{
			name: "missing dependency",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				r := f.report(0, crypto.Hash{0x01})
				r.RefinementContext.PrerequisiteWorkPackage = []crypto.Hash{{0x42}}
				return []block.Guarantee{f.guarantee(t, r, f.guarantors(0)[:2]...)}
			},
			err: ErrDependencyMissing,
		},
		{
			name: "report from the future",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				g := f.guarantee(t, f.report(0, crypto.Hash{0x01}), f.guarantors(0)[:2]...)
				g.Timeslot = f.in.Timeslot + 1
				return []block.Guarantee{g}
			},
			err: ErrFutureReportSlot,
		},
		{
			name: "bad signature",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				g := f.guarantee(t, f.report(0, crypto.Hash{0x01}), f.guarantors(0)[:2]...)
				g.Credentials[1].Signature[3] ^= 1
				return []block.Guarantee{g}
			},
			err: ErrBadSignature,
		},
		{
			name: "out of order cores",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				return []block.Guarantee{
					f.guarantee(t, f.report(1, crypto.Hash{0x02}), f.guarantors(1)[:2]...),
					f.guarantee(t, f.report(0, crypto.Hash{0x01}), f.guarantors(0)[:2]...),
				}
			},
			err: ErrOutOfOrderGuarantee,
		},
		{
			name: "duplicate package in the extrinsic",
			build: func(t *testing.T, f *fixture) []block.Guarantee {
				return []block.Guarantee{
					f.guarantee(t, f.report(0, crypto.Hash{0x01}), f.guarantors(0)[:2]...),
					f.guarantee(t, f.report(1, crypto.Hash{0x01}), f.guarantors(1)[:2]...),
				}
			},
			err: ErrDuplicatePackage,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.in.Guarantees = block.GuaranteesExtrinsic{Guarantees: tc.build(t, f)}
			_, err := ValidateGuarantees(f.cfg, f.in)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestGuaranteeAge(t *testing.T) {
	cfg := chainspec.Tiny()
	require.NoError(t, verifyGuaranteeAge(cfg, 4, 9))
	require.ErrorIs(t, verifyGuaranteeAge(cfg, 3, 9), ErrReportEpochBeforeLast)
	require.NoError(t, verifyGuaranteeAge(cfg, 0, 3))
}

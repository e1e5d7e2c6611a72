package assuring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/assuring"
	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/crypto/ed25519"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type fixture struct {
	cfg        chainspec.Config
	validators safrole.ValidatorsData
	keys       []ed25519.PrivateKey
	header     block.Header
}

func newFixture() fixture {
	cfg := chainspec.Tiny()
	f := fixture{
		cfg:        cfg,
		validators: make(safrole.ValidatorsData, cfg.NumberOfValidators),
		keys:       make([]ed25519.PrivateKey, cfg.NumberOfValidators),
		header:     block.Header{ParentHash: crypto.Hash{0xee}, TimeSlotIndex: 10},
	}
	for i := range f.keys {
		seed := make([]byte, 32)
		seed[1] = byte(i + 1)
		f.validators[i].Ed25519, f.keys[i] = ed25519.NewKeyFromSeed(seed)
	}
	return f
}

func (f fixture) assurance(t *testing.T, validator uint16, cores ...int) block.Assurance {
	bitfield := make(jam.BitSequence, f.cfg.NumberOfCores)
	for _, c := range cores {
		bitfield[c] = true
	}
	message, err := assuring.AssuranceMessage(f.cfg, f.header.ParentHash, bitfield)
	require.NoError(t, err)
	return block.Assurance{
		Anchor:         f.header.ParentHash,
		Bitfield:       bitfield,
		ValidatorIndex: validator,
		Signature:      ed25519.Sign(f.keys[validator], message),
	}
}

func TestAvailableWorkReports(t *testing.T) {
	f := newFixture()
	report := block.WorkReport{CoreIndex: 0, AuthorizerHash: crypto.Hash{1}}
	stale := block.WorkReport{CoreIndex: 1, AuthorizerHash: crypto.Hash{2}}
	assignments := state.CoreAssignments{
		{WorkReport: report, Time: 9},
		{WorkReport: stale, Time: jamtime.Timeslot(10 - f.cfg.WorkReportTimeout)},
	}

	var ae block.AssurancesExtrinsic
	for v := range f.cfg.AvailabilityThreshold() + 1 {
		ae = append(ae, f.assurance(t, uint16(v), 0))
	}

	intermediate, available, err := assuring.CalculateIntermediateCoreAssignmentsAndAvailableWorkReports(f.cfg, ae, f.validators, assignments, f.header)
	require.NoError(t, err)
	assert.Equal(t, []block.WorkReport{report}, available)
	assert.Nil(t, intermediate[0])
	assert.Nil(t, intermediate[1], "timed out report is dropped")
	assert.NotNil(t, assignments[0], "input is not modified")
}

func TestNotEnoughAssurances(t *testing.T) {
	f := newFixture()
	assignments := state.CoreAssignments{{WorkReport: block.WorkReport{}, Time: 9}, nil}
	ae := block.AssurancesExtrinsic{f.assurance(t, 0, 0), f.assurance(t, 3, 0)}

	intermediate, available, err := assuring.CalculateIntermediateCoreAssignmentsAndAvailableWorkReports(f.cfg, ae, f.validators, assignments, f.header)
	require.NoError(t, err)
	assert.Empty(t, available)
	assert.Equal(t, assignments[0], intermediate[0])
}

func TestAssurancesErrors(t *testing.T) {
	f := newFixture()
	engaged := state.CoreAssignments{{WorkReport: block.WorkReport{}, Time: 9}, nil}

	testCases := []struct {
		name       string
		assurances func() block.AssurancesExtrinsic
		err        error
	}{
		{
			name: "wrong anchor",
			assurances: func() block.AssurancesExtrinsic {
				a := f.assurance(t, 0, 0)
				a.Anchor = crypto.Hash{1}
				return block.AssurancesExtrinsic{a}
			},
			err: assuring.ErrBadAttestationParent,
		},
		{
			name: "validator index out of range",
			assurances: func() block.AssurancesExtrinsic {
				a := f.assurance(t, 0, 0)
				a.ValidatorIndex = f.cfg.NumberOfValidators
				return block.AssurancesExtrinsic{a}
			},
			err: assuring.ErrBadValidatorIndex,
		},
		{
			name: "not sorted",
			assurances: func() block.AssurancesExtrinsic {
				return block.AssurancesExtrinsic{f.assurance(t, 2, 0), f.assurance(t, 1, 0)}
			},
			err: assuring.ErrNotSortedOrUniqueAssurers,
		},
		{
			name: "duplicate",
			assurances: func() block.AssurancesExtrinsic {
				return block.AssurancesExtrinsic{f.assurance(t, 1, 0), f.assurance(t, 1, 0)}
			},
			err: assuring.ErrNotSortedOrUniqueAssurers,
		},
		{
			name: "bad signature",
			assurances: func() block.AssurancesExtrinsic {
				a := f.assurance(t, 0, 0)
				a.Signature[0] ^= 0xff
				return block.AssurancesExtrinsic{a}
			},
			err: assuring.ErrBadSignature,
		},
		{
			name: "core not engaged",
			assurances: func() block.AssurancesExtrinsic {
				return block.AssurancesExtrinsic{f.assurance(t, 0, 1)}
			},
			err: assuring.ErrCoreNotEngaged,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := assuring.CalculateIntermediateCoreAssignmentsAndAvailableWorkReports(f.cfg, tc.assurances(), f.validators, engaged, f.header)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

package statetransition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/service"
)

func solicitingState(requests map[block.ServiceId][]byte) service.ServiceState {
	services := service.ServiceState{}
	for id, data := range requests {
		account := service.ServiceAccount{Balance: 1000}
		account.SetPreimageMeta(id, crypto.HashData(data), service.PreimageLength(len(data)), service.PreimageHistoricalTimeslots{})
		services[id] = account
	}
	return services
}

func TestCalculateIntermediateServiceState(t *testing.T) {
	data := []byte{1, 2, 3}
	services := solicitingState(map[block.ServiceId][]byte{0: data})
	preimages := block.PreimageExtrinsic{{ServiceIndex: 0, Data: data}}
	newTimeslot := jamtime.Timeslot(100)

	require.NoError(t, ValidatePreimages(preimages, services))
	newServices := CalculateNewServiceStateWithPreimages(preimages, services, newTimeslot)

	hash := crypto.HashData(data)
	stored, ok := newServices[0].GetPreimage(0, hash)
	require.True(t, ok)
	assert.Equal(t, data, stored)
	meta, ok := newServices[0].GetPreimageMeta(0, hash, 3)
	require.True(t, ok)
	assert.Equal(t, service.PreimageHistoricalTimeslots{newTimeslot}, meta)

	_, ok = services[0].GetPreimage(0, hash)
	assert.False(t, ok, "prior service state is not modified")
}

func TestCalculateIntermediateServiceStateEmptyPreimages(t *testing.T) {
	services := solicitingState(map[block.ServiceId][]byte{0: {1}})
	newServices := CalculateNewServiceStateWithPreimages(nil, services, 1)
	assert.Equal(t, services, newServices)
}

func TestCalculateIntermediateServiceStateMultiplePreimages(t *testing.T) {
	first, second := []byte{1, 2, 3}, []byte{4, 5, 6}
	services := solicitingState(map[block.ServiceId][]byte{0: first, 1: second})
	preimages := block.PreimageExtrinsic{{ServiceIndex: 0, Data: first}, {ServiceIndex: 1, Data: second}}

	require.NoError(t, ValidatePreimages(preimages, services))
	newServices := CalculateNewServiceStateWithPreimages(preimages, services, 7)

	for id, data := range map[block.ServiceId][]byte{0: first, 1: second} {
		stored, ok := newServices[id].GetPreimage(id, crypto.HashData(data))
		require.True(t, ok)
		assert.Equal(t, data, stored)
	}
}

func TestCalculateIntermediateServiceStateSkipsProvided(t *testing.T) {
	data := []byte{1, 2, 3}
	services := solicitingState(map[block.ServiceId][]byte{0: data})
	preimages := block.PreimageExtrinsic{{ServiceIndex: 0, Data: data}}
	require.NoError(t, ValidatePreimages(preimages, services))

	// accumulation already provided the preimage and stamped the request
	provided := services.Clone()
	account := provided[0]
	account.InsertPreimage(0, data)
	account.SetPreimageMeta(0, crypto.HashData(data), 3, service.PreimageHistoricalTimeslots{5})
	provided[0] = account

	newServices := CalculateNewServiceStateWithPreimages(preimages, provided, 9)
	meta, ok := newServices[0].GetPreimageMeta(0, crypto.HashData(data), 3)
	require.True(t, ok)
	assert.Equal(t, service.PreimageHistoricalTimeslots{5}, meta)
}

func TestDedupePreimage(t *testing.T) {
	data := []byte{1, 2, 3}
	services := solicitingState(map[block.ServiceId][]byte{0: data})
	preimages := block.PreimageExtrinsic{{ServiceIndex: 0, Data: data}, {ServiceIndex: 0, Data: data}}

	assert.ErrorIs(t, ValidatePreimages(preimages, services), ErrPreimagesNotSortedUnique)
}

func TestValidatePreimagesErrors(t *testing.T) {
	data := []byte{1, 2, 3}
	testCases := []struct {
		name      string
		services  service.ServiceState
		preimages block.PreimageExtrinsic
		err       error
	}{
		{
			name:      "unknown service",
			services:  service.ServiceState{},
			preimages: block.PreimageExtrinsic{{ServiceIndex: 3, Data: data}},
			err:       ErrPreimageUnneeded,
		},
		{
			name:      "not requested",
			services:  solicitingState(map[block.ServiceId][]byte{0: {9}}),
			preimages: block.PreimageExtrinsic{{ServiceIndex: 0, Data: data}},
			err:       ErrPreimageUnneeded,
		},
		{
			name: "already available",
			services: func() service.ServiceState {
				s := solicitingState(map[block.ServiceId][]byte{0: data})
				account := s[0]
				account.InsertPreimage(0, data)
				s[0] = account
				return s
			}(),
			preimages: block.PreimageExtrinsic{{ServiceIndex: 0, Data: data}},
			err:       ErrPreimageUnneeded,
		},
		{
			name:      "unsorted services",
			services:  solicitingState(map[block.ServiceId][]byte{0: data, 1: data}),
			preimages: block.PreimageExtrinsic{{ServiceIndex: 1, Data: data}, {ServiceIndex: 0, Data: data}},
			err:       ErrPreimagesNotSortedUnique,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidatePreimages(tc.preimages, tc.services), tc.err)
		})
	}
}

package testutils

import (
	"crypto/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
)

func RandomHash(t *testing.T) crypto.Hash {
	var hash crypto.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)
	return hash
}

func RandomED25519PublicKey(t *testing.T) crypto.Ed25519PublicKey {
	var key crypto.Ed25519PublicKey
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return key
}

func RandomBandersnatchPublicKey(t *testing.T) crypto.BandersnatchPublicKey {
	var key crypto.BandersnatchPublicKey
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return key
}

func RandomBandersnatchSignature(t *testing.T) crypto.BandersnatchSignature {
	var sig crypto.BandersnatchSignature
	_, err := rand.Read(sig[:])
	require.NoError(t, err)
	return sig
}

func RandomBytes(t *testing.T, n int) []byte {
	bb := make([]byte, n)
	_, err := rand.Read(bb)
	require.NoError(t, err)
	return bb
}

func RandomValidatorsData(t *testing.T, n int) safrole.ValidatorsData {
	validators := make(safrole.ValidatorsData, n)
	for i := range validators {
		validators[i] = crypto.ValidatorKey{
			Bandersnatch: RandomBandersnatchPublicKey(t),
			Ed25519:      RandomED25519PublicKey(t),
		}
		_, err := rand.Read(validators[i].Bls[:])
		require.NoError(t, err)
	}
	return validators
}

// EmptyState returns a state with every fixed size component sized for cfg
// and zeroed, and no services.
func EmptyState(cfg chainspec.Config) state.State {
	cores := int(cfg.NumberOfCores)
	validators := int(cfg.NumberOfValidators)
	epochLength := int(cfg.EpochLength)

	queues := make(state.PendingAuthorizersQueues, cores)
	for i := range queues {
		queues[i] = make([]crypto.Hash, cfg.AuthorizerQueueSize)
	}

	return state.State{
		Services: service.ServiceState{},
		PrivilegedServices: service.PrivilegedServices{
			AssignedServiceIds:      make([]block.ServiceId, cores),
			AmountOfGasPerServiceId: map[block.ServiceId]uint64{},
		},
		ValidatorState: state.ValidatorState{
			CurrentValidators:  make(safrole.ValidatorsData, validators),
			ArchivedValidators: make(safrole.ValidatorsData, validators),
			QueuedValidators:   make(safrole.ValidatorsData, validators),
			SafroleState: safrole.State{
				NextValidators:   make(safrole.ValidatorsData, validators),
				SealingKeySeries: safrole.TicketsOrKeys{Keys: make([]crypto.BandersnatchPublicKey, epochLength)},
			},
		},
		CoreAuthorizersPool:      make(state.CoreAuthorizersPool, cores),
		PendingAuthorizersQueues: queues,
		CoreAssignments:          make(state.CoreAssignments, cores),
		ActivityStatistics: state.ActivityStatistics{
			ValidatorsCurrent: make([]state.ValidatorStatistics, validators),
			ValidatorsLast:    make([]state.ValidatorStatistics, validators),
			Cores:             make([]state.CoreStatistics, cores),
			Services:          state.ServiceStatistics{},
		},
		AccumulationQueue:   make(state.AccumulationQueue, epochLength),
		AccumulationHistory: emptyHistory(epochLength),
	}
}

func emptyHistory(epochLength int) state.AccumulationHistory {
	h := make(state.AccumulationHistory, epochLength)
	for i := range h {
		h[i] = map[crypto.Hash]struct{}{}
	}
	return h
}

// GenesisState returns EmptyState populated with cfg.NumberOfValidators
// distinct validators as κ, λ, ι and γ_k, sealing in fallback mode from η_2.
func GenesisState(cfg chainspec.Config) state.State {
	s := EmptyState(cfg)
	validators := make(safrole.ValidatorsData, cfg.NumberOfValidators)
	for i := range validators {
		validators[i].Bandersnatch[0] = byte(i + 1)
		validators[i].Ed25519[0] = byte(i + 1)
		validators[i].Bls[0] = byte(i + 1)
	}
	s.ValidatorState.CurrentValidators = validators
	s.ValidatorState.ArchivedValidators = slices.Clone(validators)
	s.ValidatorState.QueuedValidators = slices.Clone(validators)
	s.ValidatorState.SafroleState.NextValidators = slices.Clone(validators)
	s.ValidatorState.SafroleState.SealingKeySeries = safrole.TicketsOrKeys{
		Keys: safrole.FallbackKeys(s.EntropyPool[2], validators, cfg.EpochLength),
	}
	for c := range s.CoreAuthorizersPool {
		s.CoreAuthorizersPool[c] = []crypto.Hash{{0xa0, byte(c)}}
	}
	return s
}

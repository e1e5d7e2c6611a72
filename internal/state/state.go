package state

import (
	"slices"

	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/safrole"
	"github.com/eigerco/jamtarget/internal/service"
)

// State represents the complete state of the system (eq. 4.4 v0.6.7)
type State struct {
	Services                 service.ServiceState       // Service accounts mapping (δ)
	PrivilegedServices       service.PrivilegedServices // Privileged services (χ): services which hold some privileged status.
	ValidatorState           ValidatorState             // Validator related state (κ, λ, ι, γ)
	EntropyPool              EntropyPool                // On-chain Entropy pool (η)
	CoreAuthorizersPool      CoreAuthorizersPool        // Core authorizers pool (α)
	PendingAuthorizersQueues PendingAuthorizersQueues   // Pending Core authorizers queue (φ)
	CoreAssignments          CoreAssignments            // Core assignments (ρ): reports awaiting availability
	RecentHistory            RecentHistory              // Block-related state (β)
	TimeslotIndex            jamtime.Timeslot           // Time-related state (τ): the most recent block's slot index.
	PastJudgements           Judgements                 // PastJudgements (ψ)
	ActivityStatistics       ActivityStatistics         // Activity statistics (π)
	AccumulationQueue        AccumulationQueue          // Accumulation Queue (ϑ)
	AccumulationHistory      AccumulationHistory        // Accumulation history (ξ)
	AccumulationOutputLog    AccumulationOutputLog      // Most recent accumulation outputs (θ)
}

// ValidatorState represents the state related to validators
type ValidatorState struct {
	CurrentValidators  safrole.ValidatorsData // κ
	ArchivedValidators safrole.ValidatorsData // λ
	QueuedValidators   safrole.ValidatorsData // ι
	SafroleState       safrole.State          // γ
}

func (v ValidatorState) Clone() ValidatorState {
	return ValidatorState{
		CurrentValidators:  slices.Clone(v.CurrentValidators),
		ArchivedValidators: slices.Clone(v.ArchivedValidators),
		QueuedValidators:   slices.Clone(v.QueuedValidators),
		SafroleState:       v.SafroleState.Clone(),
	}
}

// Clone returns a deep copy. Every stage of a state transition works on its
// own copy so the prior state is never aliased by the posterior one.
func (s State) Clone() State {
	return State{
		Services:                 s.Services.Clone(),
		PrivilegedServices:       s.PrivilegedServices.Clone(),
		ValidatorState:           s.ValidatorState.Clone(),
		EntropyPool:              s.EntropyPool,
		CoreAuthorizersPool:      s.CoreAuthorizersPool.Clone(),
		PendingAuthorizersQueues: s.PendingAuthorizersQueues.Clone(),
		CoreAssignments:          s.CoreAssignments.Clone(),
		RecentHistory:            s.RecentHistory.Clone(),
		TimeslotIndex:            s.TimeslotIndex,
		PastJudgements:           s.PastJudgements.Clone(),
		ActivityStatistics:       s.ActivityStatistics.Clone(),
		AccumulationQueue:        s.AccumulationQueue.Clone(),
		AccumulationHistory:      s.AccumulationHistory.Clone(),
		AccumulationOutputLog:    slices.Clone(s.AccumulationOutputLog),
	}
}

package serialization

import (
	"fmt"

	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// DeserializeState deserializes the given map of state keys to byte slices into a State object.
func DeserializeState(codecs *state.Codecs, serializedState map[statekey.StateKey][]byte) (state.State, error) {
	s := state.State{}

	basicFields := []struct {
		key    uint8
		decode func([]byte) error
	}{
		{statekey.ChapterAuthorizerPools, into(codecs.AuthorizerPools, &s.CoreAuthorizersPool)},
		{statekey.ChapterAuthorizerQueues, into(codecs.AuthorizerQueues, &s.PendingAuthorizersQueues)},
		{statekey.ChapterRecentBlocks, into(codecs.RecentHistory, &s.RecentHistory)},
		{statekey.ChapterSafrole, into(codecs.Safrole, &s.ValidatorState.SafroleState)},
		{statekey.ChapterPastJudgements, into(codecs.Judgements, &s.PastJudgements)},
		{statekey.ChapterEntropy, into(codecs.Entropy, &s.EntropyPool)},
		{statekey.ChapterQueuedValidators, into(codecs.Validators, &s.ValidatorState.QueuedValidators)},
		{statekey.ChapterCurrentValidators, into(codecs.Validators, &s.ValidatorState.CurrentValidators)},
		{statekey.ChapterArchivedValidators, into(codecs.Validators, &s.ValidatorState.ArchivedValidators)},
		{statekey.ChapterPendingReports, into(codecs.CoreAssignments, &s.CoreAssignments)},
		{statekey.ChapterTimeslot, into(codecs.Timeslot, &s.TimeslotIndex)},
		{statekey.ChapterPrivilegedServices, into(codecs.Privileged, &s.PrivilegedServices)},
		{statekey.ChapterActivityStatistics, into(codecs.Statistics, &s.ActivityStatistics)},
		{statekey.ChapterAccumulationQueue, into(codecs.AccumulationQueue, &s.AccumulationQueue)},
		{statekey.ChapterAccumulationHistory, into(codecs.AccumulationHistory, &s.AccumulationHistory)},
		{statekey.ChapterAccumulationOutputs, into(codecs.AccumulationOutputs, &s.AccumulationOutputLog)},
	}

	for _, field := range basicFields {
		encodedValue, ok := serializedState[statekey.NewBasic(field.key)]
		if !ok {
			return s, fmt.Errorf("deserialize state: missing state key %d", field.key)
		}
		if err := field.decode(encodedValue); err != nil {
			return s, fmt.Errorf("deserialize state: chapter %d: %w", field.key, err)
		}
	}

	// Accounts first, so that dictionary entries have somewhere to go.
	s.Services = make(service.ServiceState)
	var entryKeys []statekey.StateKey
	for sk, encodedValue := range serializedState {
		switch {
		case sk.IsChapterKey():
			continue
		case sk.IsServiceKey():
			if err := deserializeService(s.Services, sk, encodedValue); err != nil {
				return s, err
			}
		default:
			entryKeys = append(entryKeys, sk)
		}
	}

	for _, sk := range entryKeys {
		serviceId, _ := sk.ExtractServiceIDHash()
		account, ok := s.Services[serviceId]
		if !ok {
			return s, fmt.Errorf("deserialize state: entry %s belongs to unknown service %d", sk, serviceId)
		}
		account.SetEntry(sk, serializedState[sk])
		s.Services[serviceId] = account
	}

	return s, nil
}

// deserializeService decodes the account record stored under C(255, s).
func deserializeService(services service.ServiceState, sk statekey.StateKey, encodedValue []byte) error {
	_, serviceId := sk.ExtractChapterServiceID()
	account, err := jam.Unmarshal(service.AccountInfoCodec, encodedValue)
	if err != nil {
		return fmt.Errorf("deserialize service %d: %w", serviceId, err)
	}
	if existing, ok := services[serviceId]; ok {
		return fmt.Errorf("deserialize service %d: duplicate account record %v", serviceId, existing.CodeHash)
	}
	services[serviceId] = account
	return nil
}

func into[T any](c jam.Codec[T], target *T) func([]byte) error {
	return func(bb []byte) error {
		v, err := jam.Unmarshal(c, bb)
		if err != nil {
			return err
		}
		*target = v
		return nil
	}
}

package serialization

import (
	"fmt"
	"slices"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// KeyValue is one entry of a serialized state.
type KeyValue struct {
	Key   statekey.StateKey
	Value []byte
}

var KeyValueCodec = jam.Struct(
	jam.Field("key", statekey.Codec, func(kv *KeyValue) *statekey.StateKey { return &kv.Key }),
	jam.Field("value", jam.Blob, func(kv *KeyValue) *[]byte { return &kv.Value }),
)

// KeyValuesCodec encodes a serialized state as a sequence of key value pairs.
var KeyValuesCodec = jam.Sequence(KeyValueCodec)

// SerializeState serializes the given state into a map of state keys to byte
// arrays, for merklization (eq. D.2 v0.6.7).
func SerializeState(codecs *state.Codecs, s state.State) (map[statekey.StateKey][]byte, error) {
	serializedState := make(map[statekey.StateKey][]byte)

	basicFields := []struct {
		key    uint8
		encode func() ([]byte, error)
	}{
		{statekey.ChapterAuthorizerPools, func() ([]byte, error) { return jam.Marshal(codecs.AuthorizerPools, s.CoreAuthorizersPool) }},
		{statekey.ChapterAuthorizerQueues, func() ([]byte, error) { return jam.Marshal(codecs.AuthorizerQueues, s.PendingAuthorizersQueues) }},
		{statekey.ChapterRecentBlocks, func() ([]byte, error) { return jam.Marshal(codecs.RecentHistory, s.RecentHistory) }},
		{statekey.ChapterSafrole, func() ([]byte, error) { return jam.Marshal(codecs.Safrole, s.ValidatorState.SafroleState) }},
		{statekey.ChapterPastJudgements, func() ([]byte, error) { return jam.Marshal(codecs.Judgements, s.PastJudgements) }},
		{statekey.ChapterEntropy, func() ([]byte, error) { return jam.Marshal(codecs.Entropy, s.EntropyPool) }},
		{statekey.ChapterQueuedValidators, func() ([]byte, error) { return jam.Marshal(codecs.Validators, s.ValidatorState.QueuedValidators) }},
		{statekey.ChapterCurrentValidators, func() ([]byte, error) { return jam.Marshal(codecs.Validators, s.ValidatorState.CurrentValidators) }},
		{statekey.ChapterArchivedValidators, func() ([]byte, error) { return jam.Marshal(codecs.Validators, s.ValidatorState.ArchivedValidators) }},
		{statekey.ChapterPendingReports, func() ([]byte, error) { return jam.Marshal(codecs.CoreAssignments, s.CoreAssignments) }},
		{statekey.ChapterTimeslot, func() ([]byte, error) { return jam.Marshal(codecs.Timeslot, s.TimeslotIndex) }},
		{statekey.ChapterPrivilegedServices, func() ([]byte, error) { return jam.Marshal(codecs.Privileged, s.PrivilegedServices) }},
		{statekey.ChapterActivityStatistics, func() ([]byte, error) { return jam.Marshal(codecs.Statistics, s.ActivityStatistics) }},
		{statekey.ChapterAccumulationQueue, func() ([]byte, error) { return jam.Marshal(codecs.AccumulationQueue, s.AccumulationQueue) }},
		{statekey.ChapterAccumulationHistory, func() ([]byte, error) { return jam.Marshal(codecs.AccumulationHistory, s.AccumulationHistory) }},
		{statekey.ChapterAccumulationOutputs, func() ([]byte, error) { return jam.Marshal(codecs.AccumulationOutputs, s.AccumulationOutputLog) }},
	}

	for _, field := range basicFields {
		encodedValue, err := field.encode()
		if err != nil {
			return nil, fmt.Errorf("serialize state: chapter %d: %w", field.key, err)
		}
		serializedState[statekey.NewBasic(field.key)] = encodedValue
	}

	for serviceId, serviceAccount := range s.Services {
		if err := serializeServiceAccount(serviceId, serviceAccount, serializedState); err != nil {
			return nil, err
		}
	}

	return serializedState, nil
}

// C(255, s) ↦ a_c ⌢ E_8(a_b, a_g, a_m, a_o, a_f) ⌢ E_4(a_i, a_r, a_a, a_p)
func serializeServiceAccount(serviceId block.ServiceId, serviceAccount service.ServiceAccount, serializedState map[statekey.StateKey][]byte) error {
	encodedServiceValue, err := jam.Marshal(service.AccountInfoCodec, serviceAccount)
	if err != nil {
		return fmt.Errorf("serialize service %d: %w", serviceId, err)
	}
	serializedState[statekey.NewService(serviceId)] = encodedServiceValue

	// Storage, preimages and requests are already held in the key value format.
	serviceAccount.Entries(func(sk statekey.StateKey, value []byte) {
		serializedState[sk] = value
	})

	return nil
}

// SortedKeyValues flattens a serialized state into key value pairs in
// ascending key order.
func SortedKeyValues(serializedState map[statekey.StateKey][]byte) []KeyValue {
	kvs := make([]KeyValue, 0, len(serializedState))
	for _, k := range jam.SortedKeys(serializedState, statekey.Compare) {
		kvs = append(kvs, KeyValue{Key: k, Value: serializedState[k]})
	}
	return kvs
}

// FromKeyValues is the inverse of SortedKeyValues. Later duplicates win.
func FromKeyValues(kvs []KeyValue) map[statekey.StateKey][]byte {
	serializedState := make(map[statekey.StateKey][]byte, len(kvs))
	for _, kv := range kvs {
		serializedState[kv.Key] = slices.Clone(kv.Value)
	}
	return serializedState
}

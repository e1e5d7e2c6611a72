package service

import (
	"maps"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/jamtime"
	"github.com/eigerco/jamtarget/internal/state/serialization/statekey"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

type ServiceState map[block.ServiceId]ServiceAccount

// ServiceAccount represents a service account in the JAM state (eq. 9.3 v0.6.7).
//
// Storage items, preimage blobs and preimage requests all live in one flat
// dictionary keyed by their state key, since the state keys of storage and
// requests can't be inverted back into their original keys. The footprint
// counters (i, o) are kept up to date on every insert and delete.
type ServiceAccount struct {
	CodeHash                       crypto.Hash      // c
	Balance                        uint64           // b
	GasLimitForAccumulator         uint64           // g
	GasLimitOnTransfer             uint64           // m
	GratisStorageOffset            uint64           // f
	CreationTimeslot               jamtime.Timeslot // r
	MostRecentAccumulationTimeslot jamtime.Timeslot // a
	ParentService                  block.ServiceId  // p

	FootprintItems uint32 // i = 2·|l| + |s|
	FootprintSize  uint64 // o = Σ(81 + z) + Σ(34 + |k| + |v|)

	// values are never modified in place, a write always stores a new slice
	entries map[statekey.StateKey][]byte
}

type PreimageLength uint32

// PreimageHistoricalTimeslots are the 0 to 3 timeslots of a preimage request.
type PreimageHistoricalTimeslots []jamtime.Timeslot

var PreimageHistoricalTimeslotsCodec = jam.Sequence(jamtime.TimeslotCodec)

// Clone returns an account that shares no mutable state with sa.
func (sa ServiceAccount) Clone() ServiceAccount {
	sa.entries = maps.Clone(sa.entries)
	return sa
}

func (sa *ServiceAccount) put(key statekey.StateKey, value []byte) {
	if sa.entries == nil {
		sa.entries = make(map[statekey.StateKey][]byte)
	}
	sa.entries[key] = value
}

// GetStorage returns the value stored under key for the service id.
func (sa ServiceAccount) GetStorage(id block.ServiceId, key []byte) ([]byte, bool) {
	v, ok := sa.entries[statekey.NewStorage(id, key)]
	return v, ok
}

// InsertStorage stores value under key and updates the footprint.
func (sa *ServiceAccount) InsertStorage(id block.ServiceId, key, value []byte) {
	sk := statekey.NewStorage(id, key)
	if old, ok := sa.entries[sk]; ok {
		sa.FootprintSize = sa.FootprintSize - uint64(len(old)) + uint64(len(value))
	} else {
		sa.FootprintItems++
		sa.FootprintSize += 34 + uint64(len(key)) + uint64(len(value))
	}
	sa.put(sk, value)
}

// DeleteStorage removes key, returning whether it was present.
func (sa *ServiceAccount) DeleteStorage(id block.ServiceId, key []byte) bool {
	sk := statekey.NewStorage(id, key)
	old, ok := sa.entries[sk]
	if !ok {
		return false
	}
	delete(sa.entries, sk)
	sa.FootprintItems--
	sa.FootprintSize -= 34 + uint64(len(key)) + uint64(len(old))
	return true
}

// GetPreimage returns the blob p with H(p) = h.
func (sa ServiceAccount) GetPreimage(id block.ServiceId, h crypto.Hash) ([]byte, bool) {
	v, ok := sa.entries[statekey.NewPreimageLookup(id, h)]
	return v, ok
}

// InsertPreimage adds a preimage blob. Blobs do not count towards the footprint,
// their request entries do.
func (sa *ServiceAccount) InsertPreimage(id block.ServiceId, p []byte) crypto.Hash {
	h := crypto.HashData(p)
	sa.put(statekey.NewPreimageLookup(id, h), p)
	return h
}

func (sa *ServiceAccount) DeletePreimage(id block.ServiceId, h crypto.Hash) {
	delete(sa.entries, statekey.NewPreimageLookup(id, h))
}

// GetPreimageMeta returns the request entry l[h, length].
func (sa ServiceAccount) GetPreimageMeta(id block.ServiceId, h crypto.Hash, length PreimageLength) (PreimageHistoricalTimeslots, bool) {
	v, ok := sa.entries[statekey.NewPreimageMeta(id, h, uint32(length))]
	if !ok {
		return nil, false
	}
	ts, err := jam.Unmarshal(PreimageHistoricalTimeslotsCodec, v)
	if err != nil {
		panic("malformed preimage request in trusted state: " + err.Error())
	}
	return ts, true
}

// SetPreimageMeta writes the request entry l[h, length].
func (sa *ServiceAccount) SetPreimageMeta(id block.ServiceId, h crypto.Hash, length PreimageLength, ts PreimageHistoricalTimeslots) {
	sk := statekey.NewPreimageMeta(id, h, uint32(length))
	if _, ok := sa.entries[sk]; !ok {
		sa.FootprintItems += 2
		sa.FootprintSize += 81 + uint64(length)
	}
	sa.put(sk, jam.MustMarshal(PreimageHistoricalTimeslotsCodec, ts))
}

// DeletePreimageMeta removes the request entry l[h, length].
func (sa *ServiceAccount) DeletePreimageMeta(id block.ServiceId, h crypto.Hash, length PreimageLength) {
	sk := statekey.NewPreimageMeta(id, h, uint32(length))
	if _, ok := sa.entries[sk]; !ok {
		return
	}
	delete(sa.entries, sk)
	sa.FootprintItems -= 2
	sa.FootprintSize -= 81 + uint64(length)
}

// Entries iterates the raw state-keyed dictionary in no particular order.
func (sa ServiceAccount) Entries(fn func(statekey.StateKey, []byte)) {
	for k, v := range sa.entries {
		fn(k, v)
	}
}

// SetEntry inserts a raw dictionary entry, as read from a state snapshot. The
// footprint counters are not touched, the snapshot carries them in the account record.
func (sa *ServiceAccount) SetEntry(key statekey.StateKey, value []byte) {
	sa.put(key, value)
}

// EntryCount is the number of raw dictionary entries.
func (sa ServiceAccount) EntryCount() int {
	return len(sa.entries)
}

// ThresholdBalance is a_t = max(0, B_S + B_I·a_i + B_L·a_o − a_f) (eq. 9.8 v0.6.7)
func (sa ServiceAccount) ThresholdBalance(cfg chainspec.Config) uint64 {
	t := cfg.BasicMinimumBalance +
		cfg.MinimumBalancePerItem*uint64(sa.FootprintItems) +
		cfg.MinimumBalancePerOctet*sa.FootprintSize
	if sa.GratisStorageOffset >= t {
		return 0
	}
	return t - sa.GratisStorageOffset
}

// CodeWithMetadata is the decoded code preimage E(↕m, c) (eq. 9.4 v0.6.7)
type CodeWithMetadata struct {
	Metadata []byte // a_m
	Code     []byte // a_c
}

// EncodedCodeAndMetadata is the raw preimage of the code hash.
func (sa ServiceAccount) EncodedCodeAndMetadata(id block.ServiceId) ([]byte, bool) {
	return sa.GetPreimage(id, sa.CodeHash)
}

// CodeAndMetadata splits the code preimage into metadata and program blob.
// It reports false when the preimage is missing or malformed.
func (sa ServiceAccount) CodeAndMetadata(id block.ServiceId) (CodeWithMetadata, bool) {
	bb, ok := sa.EncodedCodeAndMetadata(id)
	if !ok {
		return CodeWithMetadata{}, false
	}
	meta, n, err := jam.Blob.Decode(bb)
	if err != nil {
		return CodeWithMetadata{}, false
	}
	return CodeWithMetadata{Metadata: meta, Code: bb[n:]}, true
}

// LookupPreimage implements the historical lookup function Λ (eq. 9.7 v0.6.7).
func (sa ServiceAccount) LookupPreimage(id block.ServiceId, t jamtime.Timeslot, h crypto.Hash) []byte {
	p, ok := sa.GetPreimage(id, h)
	if !ok {
		return nil
	}
	meta, ok := sa.GetPreimageMeta(id, h, PreimageLength(len(p)))
	if !ok {
		return nil
	}
	if IsPreimageAvailableAt(meta, t) {
		return p
	}
	return nil
}

// IsPreimageAvailableAt is the function I(l, t):
// ● h = []: The preimage is requested, but has not yet been supplied.
// ● h ∈ [h0]: The preimage is available and has been from time h0.
// ● h ∈ [h0, h1): The preimage was available from h0 until h1.
// ● h ∈ [h0, h1) ∨ [h2, ∞): The preimage was available from h0 until h1 and from h2 onwards.
func IsPreimageAvailableAt(metadata PreimageHistoricalTimeslots, t jamtime.Timeslot) bool {
	switch len(metadata) {
	case 1:
		return metadata[0] <= t
	case 2:
		return metadata[0] <= t && t < metadata[1]
	case 3:
		return (metadata[0] <= t && t < metadata[1]) || metadata[2] <= t
	}
	return false
}

// Clone deep copies the service dictionary.
func (ss ServiceState) Clone() ServiceState {
	if ss == nil {
		return nil
	}
	out := make(ServiceState, len(ss))
	for id, sa := range ss {
		out[id] = sa.Clone()
	}
	return out
}

// PrivilegedServices χ ≡ (m, a, v, z) (eq. 9.9 v0.6.7)
type PrivilegedServices struct {
	ManagerServiceId        block.ServiceId            // m
	AssignedServiceIds      []block.ServiceId          // a, one per core
	DesignateServiceId      block.ServiceId            // v
	AmountOfGasPerServiceId map[block.ServiceId]uint64 // z, always-accumulate services
}

func (p PrivilegedServices) Clone() PrivilegedServices {
	p.AssignedServiceIds = append([]block.ServiceId(nil), p.AssignedServiceIds...)
	p.AmountOfGasPerServiceId = maps.Clone(p.AmountOfGasPerServiceId)
	return p
}

// TotalAlwaysAccumulateGas is Σ χ_z.
func (p PrivilegedServices) TotalAlwaysAccumulateGas() uint64 {
	var total uint64
	for _, g := range p.AmountOfGasPerServiceId {
		total += g
	}
	return total
}

// DeferredTransfer T ≡ (s ∈ N_S, d ∈ N_S, a ∈ N_B, m ∈ Y_WT, g ∈ N_G) (eq. 12.14 v0.6.7)
type DeferredTransfer struct {
	SenderServiceIndex   block.ServiceId // s
	ReceiverServiceIndex block.ServiceId // d
	Balance              uint64          // a
	Memo                 []byte          // m, exactly W_T octets
	GasLimit             uint64          // g
}

// NewDeferredTransferCodec encodes a transfer with a memo of memoSize octets.
func NewDeferredTransferCodec(memoSize int) jam.Codec[DeferredTransfer] {
	return jam.Struct(
		jam.Field("source", block.ServiceIdCodec, func(t *DeferredTransfer) *block.ServiceId { return &t.SenderServiceIndex }),
		jam.Field("destination", block.ServiceIdCodec, func(t *DeferredTransfer) *block.ServiceId { return &t.ReceiverServiceIndex }),
		jam.Field("amount", jam.U64, func(t *DeferredTransfer) *uint64 { return &t.Balance }),
		jam.Field("memo", jam.RawBytes(memoSize), func(t *DeferredTransfer) *[]byte { return &t.Memo }),
		jam.Field("gas", jam.U64, func(t *DeferredTransfer) *uint64 { return &t.GasLimit }),
	)
}

// AccountInfoCodec encodes the account record stored under C(255, s):
// E(a_c, E_8(a_b, a_g, a_m, a_o, a_f), E_4(a_i, a_r, a_a, a_p)) (eq. D.2 v0.6.7)
var AccountInfoCodec = jam.Struct(
	jam.Field("code_hash", crypto.HashCodec, func(a *ServiceAccount) *crypto.Hash { return &a.CodeHash }),
	jam.Field("balance", jam.U64, func(a *ServiceAccount) *uint64 { return &a.Balance }),
	jam.Field("min_item_gas", jam.U64, func(a *ServiceAccount) *uint64 { return &a.GasLimitForAccumulator }),
	jam.Field("min_memo_gas", jam.U64, func(a *ServiceAccount) *uint64 { return &a.GasLimitOnTransfer }),
	jam.Field("bytes", jam.U64, func(a *ServiceAccount) *uint64 { return &a.FootprintSize }),
	jam.Field("deposit_offset", jam.U64, func(a *ServiceAccount) *uint64 { return &a.GratisStorageOffset }),
	jam.Field("items", jam.U32, func(a *ServiceAccount) *uint32 { return &a.FootprintItems }),
	jam.Field("creation_slot", jamtime.TimeslotCodec, func(a *ServiceAccount) *jamtime.Timeslot { return &a.CreationTimeslot }),
	jam.Field("last_accumulation_slot", jamtime.TimeslotCodec, func(a *ServiceAccount) *jamtime.Timeslot { return &a.MostRecentAccumulationTimeslot }),
	jam.Field("parent_service", block.ServiceIdCodec, func(a *ServiceAccount) *block.ServiceId { return &a.ParentService }),
)

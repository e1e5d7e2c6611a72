package jamtime

import (
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// Timeslot is the block slot counter τ.
type Timeslot uint32

// Epoch is τ divided by the epoch length.
type Epoch uint32

var TimeslotCodec = jam.FixedUint[Timeslot](4)

// ToEpoch returns the epoch index for an epoch of epochLength slots.
func (ts Timeslot) ToEpoch(epochLength uint32) Epoch {
	return Epoch(uint32(ts) / epochLength)
}

// Phase is the slot index within its epoch (m in the graypaper).
func (ts Timeslot) Phase(epochLength uint32) uint32 {
	return uint32(ts) % epochLength
}

// Rotation is the validator-core rotation index for a period of rotationPeriod slots.
func (ts Timeslot) Rotation(rotationPeriod uint32) uint32 {
	return uint32(ts) / rotationPeriod
}

// FirstSlot returns the first timeslot of an epoch.
func (e Epoch) FirstSlot(epochLength uint32) Timeslot {
	return Timeslot(uint32(e) * epochLength)
}

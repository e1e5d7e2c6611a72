package jamtime

import (
	"time"
)

const TimeslotDuration = 6 * time.Second

var now = time.Now

// JamEpoch represents the start of the JAM Common Era
// 2025-01-01 12:00:00 UTC
var JamEpoch = time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

// CurrentTimeslot returns the timeslot of the wall clock. Times before the
// JAM epoch map to slot zero.
func CurrentTimeslot() Timeslot {
	return FromTime(now())
}

// FromTime converts a standard time.Time to the timeslot containing it.
func FromTime(t time.Time) Timeslot {
	if t.Before(JamEpoch) {
		return 0
	}
	seconds := uint64(t.Unix() - JamEpoch.Unix())
	slot := seconds / uint64(TimeslotDuration.Seconds())
	if slot > uint64(^Timeslot(0)) {
		return ^Timeslot(0)
	}
	return Timeslot(slot)
}

// ToTime returns the start of the timeslot.
func (ts Timeslot) ToTime() time.Time {
	return JamEpoch.Add(time.Duration(ts) * TimeslotDuration)
}

// IsInFuture reports whether ts is past the wall-clock slot.
func (ts Timeslot) IsInFuture() bool {
	return ts > CurrentTimeslot()
}

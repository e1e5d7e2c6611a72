package statetransition

// Error is a block rejection reason that is not owned by one of the
// extrinsic validation packages.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrBadSlot                  Error = "bad_slot"
	ErrSlotInFuture             Error = "slot_in_future"
	ErrInvalidParent            Error = "invalid_parent"
	ErrInvalidParentStateRoot   Error = "invalid_parent_state_root"
	ErrInvalidExtrinsicHash     Error = "invalid_extrinsic_hash"
	ErrInvalidEpochMarker       Error = "invalid_epoch_marker"
	ErrInvalidTicketsMarker     Error = "invalid_tickets_marker"
	ErrInvalidOffendersMarker   Error = "invalid_offenders_marker"
	ErrSealInvalid              Error = "seal_invalid"
	ErrPreimageUnneeded         Error = "preimage_unneeded"
	ErrPreimagesNotSortedUnique Error = "preimages_not_sorted_unique"
)

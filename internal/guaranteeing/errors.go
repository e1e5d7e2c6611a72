package guaranteeing

// Error is a guarantees extrinsic validation failure.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrBadCoreIndex                Error = "bad_core_index"
	ErrBadValidatorIndex           Error = "bad_validator_index"
	ErrOutOfOrderGuarantee         Error = "out_of_order_guarantee"
	ErrNotSortedOrUniqueGuarantors Error = "not_sorted_or_unique_guarantors"
	ErrInsufficientGuarantees      Error = "insufficient_guarantees"
	ErrCoreUnauthorized            Error = "core_unauthorized"
	ErrCoreEngaged                 Error = "core_engaged"
	ErrFutureReportSlot            Error = "future_report_slot"
	ErrReportEpochBeforeLast       Error = "report_epoch_before_last"
	ErrMissingWorkResults          Error = "missing_work_results"
	ErrTooManyWorkResults          Error = "too_many_work_results"
	ErrTooManyDependencies         Error = "too_many_dependencies"
	ErrWorkReportTooBig            Error = "work_report_too_big"
	ErrDuplicatePackage            Error = "duplicate_package"
	ErrWorkPackageInPipeline       Error = "workpackage_in_pipeline"
	ErrAnchorNotRecent             Error = "anchor_not_recent"
	ErrBadStateRoot                Error = "bad_state_root"
	ErrBadBeefyMMRRoot             Error = "bad_beefy_mmr_root"
	ErrLookupAnchorNotRecent       Error = "lookup_anchor_not_recent"
	ErrSegmentRootLookupInvalid    Error = "segment_root_lookup_invalid"
	ErrDependencyMissing           Error = "dependency_missing"
	ErrBadServiceID                Error = "bad_service_id"
	ErrBadCodeHash                 Error = "bad_code_hash"
	ErrWrongAssignment             Error = "wrong_assignment"
	ErrBannedValidator             Error = "banned_validator"
	ErrBadSignature                Error = "bad_signature"
	ErrServiceItemGasTooLow        Error = "service_item_gas_too_low"
	ErrWorkReportGasTooHigh        Error = "work_report_gas_too_high"
)

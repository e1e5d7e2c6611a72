package assuring

// Error is an assurances extrinsic validation failure.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrBadAttestationParent      Error = "bad_attestation_parent"
	ErrBadValidatorIndex         Error = "bad_validator_index"
	ErrCoreNotEngaged            Error = "core_not_engaged"
	ErrBadSignature              Error = "bad_signature"
	ErrNotSortedOrUniqueAssurers Error = "not_sorted_or_unique_assurers"
)

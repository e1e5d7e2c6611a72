package disputing

// Error is a disputes extrinsic validation failure.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrAlreadyJudged             Error = "already_judged"
	ErrBadVoteSplit              Error = "bad_vote_split"
	ErrVerdictsNotSortedUnique   Error = "verdicts_not_sorted_unique"
	ErrJudgementsNotSortedUnique Error = "judgements_not_sorted_unique"
	ErrCulpritsNotSortedUnique   Error = "culprits_not_sorted_unique"
	ErrFaultsNotSortedUnique     Error = "faults_not_sorted_unique"
	ErrNotEnoughCulprits         Error = "not_enough_culprits"
	ErrNotEnoughFaults           Error = "not_enough_faults"
	ErrCulpritsVerdictNotBad     Error = "culprits_verdict_not_bad"
	ErrFaultVerdictWrong         Error = "fault_verdict_wrong"
	ErrOffenderAlreadyReported   Error = "offender_already_reported"
	ErrBadJudgementAge           Error = "bad_judgement_age"
	ErrBadValidatorIndex         Error = "bad_validator_index"
	ErrBadSignature              Error = "bad_signature"
	ErrBadGuarantorKey           Error = "bad_guarantor_key"
	ErrBadAuditorKey             Error = "bad_auditor_key"
)

package safrole

// Error is a Safrole validation failure. The values match the error names of
// the published test vectors.
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrBadSlot          Error = "bad_slot"
	ErrUnexpectedTicket Error = "unexpected_ticket"
	ErrTooManyTickets   Error = "too_many_tickets"
	ErrBadTicketOrder   Error = "bad_ticket_order"
	ErrBadTicketProof   Error = "bad_ticket_proof"
	ErrBadTicketAttempt Error = "bad_ticket_attempt"
	ErrDuplicateTicket  Error = "duplicate_ticket"

	ErrBadAuthorIndex     Error = "bad_author_index"
	ErrUnexpectedAuthor   Error = "unexpected_author"
	ErrBadSealSignature   Error = "bad_seal_signature"
	ErrBadVRFSignature    Error = "bad_vrf_signature"
	ErrTicketMismatch     Error = "seal_ticket_mismatch"
	ErrInvalidSealingKeys Error = "invalid_sealing_keys"
)

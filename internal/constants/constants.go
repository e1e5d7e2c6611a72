// Package constants holds the protocol values that are the same for every
// chain parameter set. Sized parameters live in chainspec.Config.
package constants

// Signing contexts (appendix I.4.5 v0.6.7)
const (
	SignatureContextAvailable = "jam_available"     // X_A
	SignatureContextBeefy     = "jam_beefy"         // X_B
	SignatureContextEntropy   = "jam_entropy"       // X_E
	SignatureContextFallback  = "jam_fallback_seal" // X_F
	SignatureContextGuarantee = "jam_guarantee"     // X_G
	SignatureContextInvalid   = "jam_invalid"       // X_I
	SignatureContextTicket    = "jam_ticket_seal"   // X_T
	SignatureContextValid     = "jam_valid"         // X_V
)

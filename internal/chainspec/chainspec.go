// Package chainspec holds the protocol parameter sets. A Config is built once
// at startup and passed by value to everything that needs a parameter.
package chainspec

import (
	"strings"
)

const (
	NameTiny = "tiny"
	NameFull = "full"
)

// Config is the immutable set of protocol constants (graypaper appendix I.4).
type Config struct {
	Name string

	NumberOfValidators        uint16 // V
	NumberOfCores             uint16 // C
	EpochLength               uint32 // E
	ValidatorRotationPeriod   uint32 // R
	TicketSubmissionEnd       uint32 // Y
	MaxTicketAttempts         uint8  // N
	MaxTicketsPerExtrinsic    int    // K
	PreimageExpungePeriod     uint32 // D
	MaxLookupAnchorAge        uint32 // L
	TotalAccumulationGas      uint64 // G_T
	MaxAccumulationGas        uint64 // G_A
	MaxIsAuthorizedGas        uint64 // G_I
	MaxRefineGas              uint64 // G_R
	ErasureCodingPieceSize    int    // W_E
	ErasureCodingPiecesPerSeg int    // W_P

	MaxRecentBlocks          int    // H
	MaxAuthorizersPerCore    int    // O
	AuthorizerQueueSize      int    // Q
	WorkReportTimeout        uint32 // U
	BasicMinimumBalance      uint64 // B_S
	MinimumBalancePerItem    uint64 // B_I
	MinimumBalancePerOctet   uint64 // B_L
	TransferMemoSize         int    // W_T
	MaxServiceCodeSize       int    // W_C
	MaxIsAuthorizedCodeSize  int    // W_A
	MaxWorkReportOutputSize  int    // W_R
	MaxWorkPackageSize       int    // W_B
	MaxDependencies          int    // J
	MaxWorkItems             int    // I
	MaxExtrinsics            int    // T
	MaxImports               int    // W_M
	MaxExports               int    // W_X
	SlotPeriodSeconds        uint32 // P
	MaxAccumulationQueueSize int    // S
}

// Tiny is the reduced parameter set used by the test vectors.
func Tiny() Config {
	c := common()
	c.Name = NameTiny
	c.NumberOfValidators = 6
	c.NumberOfCores = 2
	c.EpochLength = 12
	c.ValidatorRotationPeriod = 4
	c.TicketSubmissionEnd = 10
	c.MaxTicketAttempts = 3
	c.MaxTicketsPerExtrinsic = 3
	c.PreimageExpungePeriod = 32
	c.TotalAccumulationGas = 20_000_000
	c.MaxRefineGas = 1_000_000_000
	c.ErasureCodingPieceSize = 4
	c.ErasureCodingPiecesPerSeg = 1026
	return c
}

// Full is the production parameter set.
func Full() Config {
	c := common()
	c.Name = NameFull
	c.NumberOfValidators = 1023
	c.NumberOfCores = 341
	c.EpochLength = 600
	c.ValidatorRotationPeriod = 10
	c.TicketSubmissionEnd = 500
	c.MaxTicketAttempts = 2
	c.MaxTicketsPerExtrinsic = 16
	c.PreimageExpungePeriod = 19_200
	c.TotalAccumulationGas = 3_500_000_000
	c.MaxRefineGas = 5_000_000_000
	c.ErasureCodingPieceSize = 684
	c.ErasureCodingPiecesPerSeg = 6
	return c
}

func common() Config {
	return Config{
		MaxLookupAnchorAge:       14_400,
		MaxAccumulationGas:       10_000_000,
		MaxIsAuthorizedGas:       50_000_000,
		MaxRecentBlocks:          8,
		MaxAuthorizersPerCore:    8,
		AuthorizerQueueSize:      80,
		WorkReportTimeout:        5,
		BasicMinimumBalance:      100,
		MinimumBalancePerItem:    10,
		MinimumBalancePerOctet:   1,
		TransferMemoSize:         128,
		MaxServiceCodeSize:       4_000_000,
		MaxIsAuthorizedCodeSize:  64_000,
		MaxWorkReportOutputSize:  48 * 1024,
		MaxWorkPackageSize:       13_794_305,
		MaxDependencies:          8,
		MaxWorkItems:             16,
		MaxExtrinsics:            128,
		MaxImports:               3_072,
		MaxExports:               3_072,
		SlotPeriodSeconds:        6,
		MaxAccumulationQueueSize: 1024,
	}
}

// FromName maps the JAM_CONSTANTS value to a parameter set. Only "tiny"
// selects the reduced set, anything else is full.
func FromName(name string) Config {
	if strings.EqualFold(strings.TrimSpace(name), NameTiny) {
		return Tiny()
	}
	return Full()
}

// ValidatorsSuperMajority is ⌊2V/3⌋ + 1.
func (c Config) ValidatorsSuperMajority() int {
	return int(c.NumberOfValidators)*2/3 + 1
}

// ValidatorsOneThird is ⌊V/3⌋.
func (c Config) ValidatorsOneThird() int {
	return int(c.NumberOfValidators) / 3
}

// AvailabilityThreshold is the number of assurances a core needs, more than 2V/3.
func (c Config) AvailabilityThreshold() int {
	return int(c.NumberOfValidators) * 2 / 3
}

// SegmentSize is W_G = W_P * W_E.
func (c Config) SegmentSize() int {
	return c.ErasureCodingPieceSize * c.ErasureCodingPiecesPerSeg
}

// AvailabilityBitfieldSize is the assurance bitfield width in octets.
func (c Config) AvailabilityBitfieldSize() int {
	return (int(c.NumberOfCores) + 7) / 8
}

// GuarantorsPerCore is the number of validators assigned to each core.
func (c Config) GuarantorsPerCore() int {
	return int(c.NumberOfValidators) / int(c.NumberOfCores)
}

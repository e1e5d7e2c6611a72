package host_call

import (
	"math"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

// BaseCost is g = 10, the cost of every host call except transfer which
// additionally pays the gas it forwards.
const BaseCost pvm.Gas = 10

// Host call indices (appendix B.8 v0.6.7)
const (
	GasID = iota
	FetchID
	LookupID
	ReadID
	WriteID
	InfoID
	HistoricalLookupID
	ExportID
	MachineID
	PeekID
	PokeID
	PagesID
	InvokeID
	ExpungeID
	BlessID
	AssignID
	DesignateID
	CheckpointID
	NewID
	UpgradeID
	TransferID
	EjectID
	QueryID
	SolicitID
	ForgetID
	YieldID
	ProvideID

	LogID = 100
)

type Code uint64

const (
	NONE Code = math.MaxUint64 - iota
	WHAT
	OOB
	WHO
	FULL
	CORE
	CASH
	LOW
	HUH
	OK Code = 0
)

// Inner pvm invocations have their own set of result codes
const (
	HALT  = 0 // The invocation completed and halted normally.
	PANIC = 1 // The invocation completed with a panic.
	FAULT = 2 // The invocation completed with a page fault.
	HOST  = 3 // The invocation completed with a host-call fault.
	OOG   = 4 // The invocation completed by running out of gas.
)

func (r Code) String() string {
	switch r {
	case NONE:
		return "item does not exist"
	case WHAT:
		return "name unknown"
	case OOB:
		return "the return value for memory index provided is not accessible"
	case WHO:
		return "index unknown"
	case FULL:
		return "storage full"
	case CORE:
		return "core index unknown"
	case CASH:
		return "insufficient funds"
	case LOW:
		return "gas limit too low"
	case HUH:
		return "the item is already solicited or cannot be forgotten"
	case OK:
		return "success"
	}
	return "unknown"
}

var hostCallNames = map[uint64]string{
	GasID:              "gas",
	FetchID:            "fetch",
	LookupID:           "lookup",
	ReadID:             "read",
	WriteID:            "write",
	InfoID:             "info",
	HistoricalLookupID: "historical_lookup",
	ExportID:           "export",
	MachineID:          "machine",
	PeekID:             "peek",
	PokeID:             "poke",
	PagesID:            "pages",
	InvokeID:           "invoke",
	ExpungeID:          "expunge",
	BlessID:            "bless",
	AssignID:           "assign",
	DesignateID:        "designate",
	CheckpointID:       "checkpoint",
	NewID:              "new",
	UpgradeID:          "upgrade",
	TransferID:         "transfer",
	EjectID:            "eject",
	QueryID:            "query",
	SolicitID:          "solicit",
	ForgetID:           "forget",
	YieldID:            "yield",
	ProvideID:          "provide",
	LogID:              "log",
}

// HostCallName returns a human-readable name for a host call ID
func HostCallName(id uint64) string {
	if name, ok := hostCallNames[id]; ok {
		return name
	}
	return "unknown"
}

// Cost is the gas charged up front for a host call, checked by the
// dispatcher before the call runs: ϱ < g is an out of gas exit with no
// other effect.
func Cost(id uint64, regs pvm.Registers) pvm.Gas {
	if id == TransferID {
		// g = 10 + φ9
		if regs[pvm.R9] > math.MaxInt64-uint64(BaseCost) {
			return math.MaxInt64
		}
		return BaseCost + pvm.Gas(regs[pvm.R9])
	}
	return BaseCost
}

// readBytes reads μ_{addr..+length}, any inaccessible octet is a panic.
func readBytes(mem pvm.Memory, addr, length uint64) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}
	if addr > math.MaxUint32 || !mem.IsReadable(uint32(addr), length) {
		return nil, pvm.ErrPanicf("inaccessible memory, address=%d length=%d", addr, length)
	}
	b := make([]byte, length)
	if err := mem.Read(uint32(addr), b); err != nil {
		return nil, pvm.ErrPanicf("%s", err)
	}
	return b, nil
}

// readHash reads the 32 octets at addr.
func readHash(mem pvm.Memory, addr uint64) ([32]byte, error) {
	var h [32]byte
	b, err := readBytes(mem, addr, 32)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func readNumber[U ~uint32 | ~uint64](mem pvm.Memory, addr uint64, length int) (U, error) {
	b, err := readBytes(mem, addr, uint64(length))
	if err != nil {
		return 0, err
	}
	return jam.DeserializeTrivialNatural[U](b), nil
}

// writeBytes writes data at addr, any inaccessible octet is a panic.
func writeBytes(mem pvm.Memory, addr uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if addr > math.MaxUint32 || !mem.IsWritable(uint32(addr), uint64(len(data))) {
		return pvm.ErrPanicf("out-of-bounds write at address %d", addr)
	}
	if err := mem.Write(uint32(addr), data); err != nil {
		return pvm.ErrPanicf("%s", err)
	}
	return nil
}

func withCode(regs pvm.Registers, s Code) pvm.Registers {
	regs[pvm.R7] = uint64(s)
	return regs
}

// writeFromOffset writes v_{f..+l} to μ_o with f = min(offset, |v|) and
// l = min(length, |v| − f), the common output pattern of the read-like calls.
func writeFromOffset(mem pvm.Memory, addressToWrite uint64, data []byte, offset uint64, length uint64) error {
	vLen := uint64(len(data))

	f := min(offset, vLen)
	l := min(length, vLen-f)

	return writeBytes(mem, addressToWrite, data[f:f+l])
}

// lookupService is d[id] for a register value, which may exceed N_S.
func lookupService(d service.ServiceState, id uint64) (service.ServiceAccount, bool) {
	if !isServiceId(id) {
		return service.ServiceAccount{}, false
	}
	a, ok := d[block.ServiceId(id)]
	return a, ok
}

// isServiceId reports whether the register value is in N_S.
func isServiceId(v uint64) bool {
	return v <= math.MaxUint32
}

package host_call_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/pvm/host_call"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/internal/state"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

const (
	initialGas = 100
	// first address outside the forbidden zone
	base = pvm.MemoryZoneSize
)

// newMemory has four writable pages at base.
func newMemory() pvm.Memory {
	mem := pvm.NewMemory()
	mem.SetPages(base/pvm.PageSize, 4, pvm.ReadWrite, true)
	return mem
}

func write(t *testing.T, mem pvm.Memory, addr uint64, data []byte) {
	t.Helper()
	require.NoError(t, mem.Write(uint32(addr), data))
}

func read(t *testing.T, mem pvm.Memory, addr uint64, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	require.NoError(t, mem.Read(uint32(addr), b))
	return b
}

// programBlob builds a deblob-able program with no jump table.
func programBlob(code []byte, mask string) []byte {
	bitmask := make(jam.BitSequence, len(mask))
	for i, c := range mask {
		bitmask[i] = c == '1'
	}
	buf := bytes.NewBuffer(nil)
	buf.Write(jam.SerializeUint64(0))
	buf.WriteByte(0)
	buf.Write(jam.SerializeUint64(uint64(len(code))))
	buf.Write(code)
	buf.Write(jam.MustMarshal(jam.FixedBitSequence(len(bitmask)), bitmask))
	return buf.Bytes()
}

func newCtxPair(serviceId block.ServiceId, accounts service.ServiceState) host_call.AccumulateContextPair {
	ctx := host_call.AccumulateContext{
		ServiceId: serviceId,
		AccumulationState: state.AccumulationState{
			ServiceState:             accounts,
			PendingAuthorizersQueues: make(state.PendingAuthorizersQueues, 2),
			AssignedServiceIds:       []block.ServiceId{serviceId, serviceId},
			AmountOfGasPerServiceId:  map[block.ServiceId]uint64{},
		},
		NewServiceId: 1 << 10,
	}
	return host_call.AccumulateContextPair{RegularCtx: ctx, ExceptionalCtx: ctx.Clone()}
}

package host_call_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/jamtarget/internal/block"
	"github.com/eigerco/jamtarget/internal/chainspec"
	"github.com/eigerco/jamtarget/internal/crypto"
	"github.com/eigerco/jamtarget/internal/pvm"
	"github.com/eigerco/jamtarget/internal/pvm/host_call"
	"github.com/eigerco/jamtarget/internal/service"
	"github.com/eigerco/jamtarget/pkg/serialization/codec/jam"
)

func TestGasRemaining(t *testing.T) {
	gas, regs, err := host_call.GasRemaining(initialGas, pvm.Registers{})
	require.NoError(t, err)
	assert.Equal(t, pvm.Gas(90), gas)
	assert.Equal(t, uint64(90), regs[pvm.R7])
}

func TestFetch(t *testing.T) {
	cfg := chainspec.Tiny()
	entropy := crypto.Hash{1, 2, 3}

	t.Run("constants", func(t *testing.T) {
		mem := newMemory()
		regs := pvm.Registers{}
		regs[pvm.R7] = base
		regs[pvm.R9] = math.MaxUint32
		gas, regs, mem, err := host_call.Fetch(initialGas, regs, mem, cfg, host_call.FetchData{})
		require.NoError(t, err)

		constants := host_call.ChainConstants(cfg)
		assert.Equal(t, pvm.Gas(90), gas)
		assert.Equal(t, uint64(len(constants)), regs[pvm.R7])
		assert.Equal(t, constants, read(t, mem, base, len(constants)))
	})
	t.Run("entropy with offset", func(t *testing.T) {
		mem := newMemory()
		regs := pvm.Registers{}
		regs[pvm.R7] = base
		regs[pvm.R8] = 1
		regs[pvm.R9] = 2
		regs[pvm.R10] = 1
		_, regs, mem, err := host_call.Fetch(initialGas, regs, mem, cfg, host_call.FetchData{Entropy: &entropy})
		require.NoError(t, err)
		assert.Equal(t, uint64(crypto.HashSize), regs[pvm.R7])
		assert.Equal(t, []byte{2, 3}, read(t, mem, base, 2))
	})
	t.Run("missing item", func(t *testing.T) {
		regs := pvm.Registers{}
		regs[pvm.R10] = 1
		_, regs, _, err := host_call.Fetch(initialGas, regs, newMemory(), cfg, host_call.FetchData{})
		require.NoError(t, err)
		assert.Equal(t, uint64(host_call.NONE), regs[pvm.R7])
	})
	t.Run("transfer by index", func(t *testing.T) {
		transfer := service.DeferredTransfer{SenderServiceIndex: 1, ReceiverServiceIndex: 2, Balance: 3, Memo: make([]byte, cfg.TransferMemoSize), GasLimit: 4}
		mem := newMemory()
		regs := pvm.Registers{}
		regs[pvm.R7] = base
		regs[pvm.R9] = math.MaxUint32
		regs[pvm.R10] = 17
		_, regs, mem, err := host_call.Fetch(initialGas, regs, mem, cfg, host_call.FetchData{Transfers: []service.DeferredTransfer{transfer}})
		require.NoError(t, err)

		expected := jam.MustMarshal(service.NewDeferredTransferCodec(cfg.TransferMemoSize), transfer)
		assert.Equal(t, uint64(len(expected)), regs[pvm.R7])
		assert.Equal(t, expected, read(t, mem, base, len(expected)))
	})
	t.Run("unwritable output panics", func(t *testing.T) {
		regs := pvm.Registers{}
		regs[pvm.R7] = 0
		regs[pvm.R9] = 8
		_, _, _, err := host_call.Fetch(initialGas, regs, newMemory(), cfg, host_call.FetchData{})
		var panicErr *pvm.ErrPanic
		require.ErrorAs(t, err, &panicErr)
	})
}

func TestLookup(t *testing.T) {
	serviceId := block.ServiceId(1)
	preimage := []byte("preimage")
	sa := service.ServiceAccount{}
	h := sa.InsertPreimage(serviceId, preimage)
	other := service.ServiceAccount{}
	other.InsertPreimage(2, []byte("other"))
	serviceState := service.ServiceState{serviceId: sa, 2: other}

	mem := newMemory()
	write(t, mem, base, h[:])

	regs := pvm.Registers{}
	regs[pvm.R7] = math.MaxUint64
	regs[pvm.R8] = base
	regs[pvm.R9] = base + 64
	regs[pvm.R10] = 3
	regs[pvm.R11] = 100
	gas, regs, mem, err := host_call.Lookup(initialGas, regs, mem, sa, serviceId, serviceState)
	require.NoError(t, err)
	assert.Equal(t, pvm.Gas(90), gas)
	assert.Equal(t, uint64(len(preimage)), regs[pvm.R7])
	assert.Equal(t, preimage[3:], read(t, mem, base+64, len(preimage)-3))

	// the other service does not know the hash
	regs[pvm.R7] = 2
	_, regs, _, err = host_call.Lookup(initialGas, regs, mem, sa, serviceId, serviceState)
	require.NoError(t, err)
	assert.Equal(t, uint64(host_call.NONE), regs[pvm.R7])

	// unreadable hash is a panic even for unknown services
	regs[pvm.R7] = 99
	regs[pvm.R8] = 0
	_, _, _, err = host_call.Lookup(initialGas, regs, mem, sa, serviceId, serviceState)
	var panicErr *pvm.ErrPanic
	require.ErrorAs(t, err, &panicErr)
}

func TestReadWrite(t *testing.T) {
	cfg := chainspec.Tiny()
	serviceId := block.ServiceId(1)
	sa := service.ServiceAccount{Balance: 1000}
	key, value := []byte("key"), []byte("value")

	mem := newMemory()
	write(t, mem, base, key)
	write(t, mem, base+16, value)

	regs := pvm.Registers{}
	regs[pvm.R7] = base
	regs[pvm.R8] = uint64(len(key))
	regs[pvm.R9] = base + 16
	regs[pvm.R10] = uint64(len(value))
	gas, regs, mem, sa, err := host_call.Write(initialGas, regs, mem, sa, serviceId, cfg)
	require.NoError(t, err)
	assert.Equal(t, pvm.Gas(90), gas)
	assert.Equal(t, uint64(host_call.NONE), regs[pvm.R7])
	assert.Equal(t, uint32(1), sa.FootprintItems)
	assert.Equal(t, uint64(34+len(key)+len(value)), sa.FootprintSize)

	// overwriting returns the previous length
	regs[pvm.R7], regs[pvm.R10] = base, 2
	_, regs, mem, sa, err = host_call.Write(initialGas, regs, mem, sa, serviceId, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(value)), regs[pvm.R7])

	regs = pvm.Registers{}
	regs[pvm.R7] = math.MaxUint64
	regs[pvm.R8] = base
	regs[pvm.R9] = uint64(len(key))
	regs[pvm.R10] = base + 64
	regs[pvm.R12] = 10
	_, regs, mem, err = host_call.Read(initialGas, regs, mem, sa, serviceId, service.ServiceState{serviceId: sa})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), regs[pvm.R7])
	assert.Equal(t, value[:2], read(t, mem, base+64, 2))

	// deleting with a zero length value
	regs = pvm.Registers{}
	regs[pvm.R7] = base
	regs[pvm.R8] = uint64(len(key))
	_, regs, _, sa, err = host_call.Write(initialGas, regs, mem, sa, serviceId, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), regs[pvm.R7])
	_, ok := sa.GetStorage(serviceId, key)
	assert.False(t, ok)
	assert.Equal(t, uint32(0), sa.FootprintItems)
}

func TestWrite_Full(t *testing.T) {
	cfg := chainspec.Tiny()
	sa := service.ServiceAccount{Balance: 100}
	mem := newMemory()
	write(t, mem, base, []byte("key"))

	regs := pvm.Registers{}
	regs[pvm.R7] = base
	regs[pvm.R8] = 3
	regs[pvm.R9] = base
	regs[pvm.R10] = 3
	_, regs, _, out, err := host_call.Write(initialGas, regs, mem, sa, 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(host_call.FULL), regs[pvm.R7])
	assert.Equal(t, uint32(0), out.FootprintItems)
	assert.Equal(t, 0, out.EntryCount())
}

func TestInfo(t *testing.T) {
	cfg := chainspec.Tiny()
	serviceId := block.ServiceId(7)
	sa := service.ServiceAccount{
		CodeHash:               crypto.Hash{0xaa},
		Balance:                12345,
		GasLimitForAccumulator: 11,
		GasLimitOnTransfer:     22,
		CreationTimeslot:       3,
		ParentService:          4,
	}
	serviceState := service.ServiceState{serviceId: sa}

	mem := newMemory()
	regs := pvm.Registers{}
	regs[pvm.R7] = math.MaxUint64
	regs[pvm.R8] = base
	regs[pvm.R10] = math.MaxUint32
	_, regs, mem, err := host_call.Info(initialGas, regs, mem, serviceId, serviceState, cfg)
	require.NoError(t, err)
	require.Equal(t, uint64(96), regs[pvm.R7])

	v := read(t, mem, base, 96)
	assert.Equal(t, sa.CodeHash[:], v[:32])
	assert.Equal(t, uint64(12345), jam.DeserializeTrivialNatural[uint64](v[32:40]))
	assert.Equal(t, sa.ThresholdBalance(cfg), jam.DeserializeTrivialNatural[uint64](v[40:48]))
	assert.Equal(t, uint64(11), jam.DeserializeTrivialNatural[uint64](v[48:56]))
	assert.Equal(t, uint64(22), jam.DeserializeTrivialNatural[uint64](v[56:64]))
	assert.Equal(t, uint32(3), jam.DeserializeTrivialNatural[uint32](v[84:88]))
	assert.Equal(t, uint32(4), jam.DeserializeTrivialNatural[uint32](v[92:96]))

	regs[pvm.R7] = 1 << 40
	_, regs, _, err = host_call.Info(initialGas, regs, mem, serviceId, serviceState, cfg)
	require.NoError(t, err)
	assert.Equal(t, uint64(host_call.NONE), regs[pvm.R7])
}

func TestLog(t *testing.T) {
	mem := newMemory()
	write(t, mem, base, []byte("hello"))
	regs := pvm.Registers{}
	regs[pvm.R7] = 2
	regs[pvm.R10] = base
	regs[pvm.R11] = 5
	serviceId := block.ServiceId(3)
	gas, regs, _, err := host_call.Log(initialGas, regs, mem, nil, &serviceId)
	require.NoError(t, err)
	assert.Equal(t, pvm.Gas(90), gas)
	assert.Equal(t, uint64(host_call.WHAT), regs[pvm.R7])
}

func TestCost(t *testing.T) {
	regs := pvm.Registers{}
	assert.Equal(t, host_call.BaseCost, host_call.Cost(host_call.ReadID, regs))
	regs[pvm.R9] = 5
	assert.Equal(t, pvm.Gas(15), host_call.Cost(host_call.TransferID, regs))
	regs[pvm.R9] = math.MaxUint64
	assert.Equal(t, pvm.Gas(math.MaxInt64), host_call.Cost(host_call.TransferID, regs))
}

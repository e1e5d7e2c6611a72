package bandersnatch

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/eigerco/jamtarget/internal/crypto"
)

var ErrNativeCall = errors.New("bandersnatch native call failed")

// Native calls into a shared library exposing the C ABI below. All slice
// parameters are passed as uintptr because purego on ARM64 doesn't support slices.
type Native struct {
	ietfVerify func(
		publicKey uintptr,
		context uintptr, contextLen uint64,
		message uintptr, messageLen uint64,
		signature uintptr,
		outputOut uintptr,
	) int32
	outputHash func(signature uintptr, outputOut uintptr) int32
	ringVerify func(
		ringSize uint64,
		commitment uintptr,
		context uintptr, contextLen uint64,
		message uintptr, messageLen uint64,
		signature uintptr,
		outputOut uintptr,
	) int32
	ringCommitment func(keys uintptr, keysLen uint64, commitmentOut uintptr) int32
}

// Load opens the shared library at path and binds its functions.
func Load(path string) (*Native, error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("loading bandersnatch library %s: %w", path, err)
	}

	n := &Native{}
	purego.RegisterLibFunc(&n.ietfVerify, lib, "bandersnatch_ietf_vrf_verify")
	purego.RegisterLibFunc(&n.outputHash, lib, "bandersnatch_ietf_vrf_output")
	purego.RegisterLibFunc(&n.ringVerify, lib, "bandersnatch_ring_vrf_verify")
	purego.RegisterLibFunc(&n.ringCommitment, lib, "bandersnatch_ring_commitment")
	return n, nil
}

func ptr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

func (n *Native) Verify(pub crypto.BandersnatchPublicKey, context, message []byte, sig crypto.BandersnatchSignature) (crypto.Hash, bool) {
	var out crypto.Hash
	res := n.ietfVerify(
		ptr(pub[:]),
		ptr(context), uint64(len(context)),
		ptr(message), uint64(len(message)),
		ptr(sig[:]),
		ptr(out[:]),
	)
	runtime.KeepAlive(context)
	runtime.KeepAlive(message)
	return out, res == 0
}

func (n *Native) OutputHash(sig crypto.BandersnatchSignature) (crypto.Hash, error) {
	var out crypto.Hash
	if res := n.outputHash(ptr(sig[:]), ptr(out[:])); res != 0 {
		return crypto.Hash{}, fmt.Errorf("%w: output hash code %d", ErrNativeCall, res)
	}
	return out, nil
}

func (n *Native) RingVerify(ringSize int, commitment crypto.RingCommitment, context, message []byte, sig crypto.RingVrfSignature) (crypto.Hash, bool) {
	var out crypto.Hash
	res := n.ringVerify(
		uint64(ringSize),
		ptr(commitment[:]),
		ptr(context), uint64(len(context)),
		ptr(message), uint64(len(message)),
		ptr(sig[:]),
		ptr(out[:]),
	)
	runtime.KeepAlive(context)
	runtime.KeepAlive(message)
	return out, res == 0
}

func (n *Native) RingCommitment(keys []crypto.BandersnatchPublicKey) (crypto.RingCommitment, error) {
	flat := make([]byte, 0, len(keys)*crypto.BandersnatchSize)
	for _, k := range keys {
		flat = append(flat, k[:]...)
	}
	var out crypto.RingCommitment
	res := n.ringCommitment(ptr(flat), uint64(len(keys)), ptr(out[:]))
	runtime.KeepAlive(flat)
	if res != 0 {
		return crypto.RingCommitment{}, fmt.Errorf("%w: ring commitment code %d", ErrNativeCall, res)
	}
	return out, nil
}

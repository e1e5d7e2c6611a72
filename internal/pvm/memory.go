package pvm

const (
	AddressSpaceSize        = 1 << 32
	PageSize                = 1 << 12 // Z_P: the pvm memory page size (eq. 4.24 v0.6.7)
	MaxPageIndex            = AddressSpaceSize / PageSize
	MemoryZoneSize          = 1 << 16 // Z_Z: the standard program initialization zone size (eq. A.38 v0.6.7)
	InputDataSize           = 1 << 24 // Z_I: the standard program initialization input data size (eq. A.38 v0.6.7)
	DynamicAddressAlignment = 2       // Z_A: the dynamic address alignment factor (eq. A.18 v0.6.7)
	AddressReturnToHost     = AddressSpaceSize - MemoryZoneSize
)

var ErrForbiddenMemoryAccess = ErrPanicf("forbidden memory access")

type MemoryAccess int

const (
	Inaccessible MemoryAccess = iota // ∅ (Inaccessible)
	ReadOnly                         // R (Read-Only)
	ReadWrite                        // W (Read-Write)
)

type page struct {
	// nil until the first write, reads as zeroes
	data   []byte
	access MemoryAccess
}

// Memory M ≡ (v ∈ B_2^32, a ∈ ⟦{W, R, ∅}⟧p) (eq. 4.24 v0.6.7)
//
// Only pages which are accessible or have been touched are kept, the rest
// of the address space is implicitly inaccessible.
type Memory struct {
	pages map[uint32]*page
	// heap top, moved by sbrk
	heapPointer uint32
}

func NewMemory() Memory {
	return Memory{pages: make(map[uint32]*page)}
}

// Clone returns a memory sharing no pages with m.
func (m Memory) Clone() Memory {
	out := Memory{pages: make(map[uint32]*page, len(m.pages)), heapPointer: m.heapPointer}
	for idx, p := range m.pages {
		cp := &page{access: p.access}
		if p.data != nil {
			cp.data = append([]byte(nil), p.data...)
		}
		out.pages[idx] = cp
	}
	return out
}

func (m Memory) GetAccess(pageIndex uint32) MemoryAccess {
	if p, ok := m.pages[pageIndex]; ok {
		return p.access
	}
	return Inaccessible
}

// SetAccess updates the access mode of a page, creating it when needed.
func (m *Memory) SetAccess(pageIndex uint32, access MemoryAccess) {
	if m.pages == nil {
		m.pages = make(map[uint32]*page)
	}
	p, ok := m.pages[pageIndex]
	if !ok {
		if access == Inaccessible {
			return
		}
		p = &page{}
		m.pages[pageIndex] = p
	}
	p.access = access
}

// SetPages sets the access of count pages starting at start and optionally zeroes them.
// Voiding a page (access ∅ with clear) drops it entirely.
func (m *Memory) SetPages(start, count uint32, access MemoryAccess, zero bool) {
	for idx := start; idx < start+count; idx++ {
		if access == Inaccessible && zero {
			delete(m.pages, idx)
			continue
		}
		m.SetAccess(idx, access)
		if zero {
			if p, ok := m.pages[idx]; ok {
				p.data = nil
			}
		}
	}
}

// SetHeapPointer places the heap top used by Sbrk.
func (m *Memory) SetHeapPointer(addr uint32) {
	m.heapPointer = addr
}

// checkRange finds the lowest page in [address, address+length) without the required access.
func (m Memory) checkRange(address uint32, length int, required MemoryAccess) error {
	if address < MemoryZoneSize {
		return ErrForbiddenMemoryAccess
	}
	end := uint64(address) + uint64(length)
	for idx := uint64(address) / PageSize; idx*PageSize < end; idx++ {
		pageIdx := uint32(idx % MaxPageIndex)
		if m.GetAccess(pageIdx) < required {
			faultAddr := pageIdx * PageSize
			if idx >= MaxPageIndex || faultAddr < MemoryZoneSize {
				return ErrForbiddenMemoryAccess
			}
			return &ErrPageFault{Reason: "inaccessible memory", Address: faultAddr}
		}
	}
	return nil
}

// Read reads from the set of readable indices V_μ into data (eq. A.7 v0.6.7)
func (m Memory) Read(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := m.checkRange(address, len(data), ReadOnly); err != nil {
		return err
	}
	for n := 0; n < len(data); {
		addr := address + uint32(n)
		p := m.pages[addr/PageSize]
		off := int(addr % PageSize)
		chunk := min(PageSize-off, len(data)-n)
		if p.data == nil {
			clear(data[n : n+chunk])
		} else {
			copy(data[n:n+chunk], p.data[off:off+chunk])
		}
		n += chunk
	}
	return nil
}

// Write writes data to the set of writeable indices V*_μ (eq. A.7 v0.6.7)
func (m Memory) Write(address uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := m.checkRange(address, len(data), ReadWrite); err != nil {
		return err
	}
	m.copyIn(address, data)
	return nil
}

// copyIn writes regardless of access, used when laying out a program.
func (m Memory) copyIn(address uint32, data []byte) {
	for n := 0; n < len(data); {
		addr := address + uint32(n)
		p := m.pages[addr/PageSize]
		off := int(addr % PageSize)
		chunk := min(PageSize-off, len(data)-n)
		if p.data == nil {
			p.data = make([]byte, PageSize)
		}
		copy(p.data[off:off+chunk], data[n:n+chunk])
		n += chunk
	}
}

// IsReadable reports whether the whole range is in V_μ.
func (m Memory) IsReadable(address uint32, length uint64) bool {
	return length == 0 || length <= AddressSpaceSize && m.checkRange(address, int(length), ReadOnly) == nil
}

// IsWritable reports whether the whole range is in V*_μ.
func (m Memory) IsWritable(address uint32, length uint64) bool {
	return length == 0 || length <= AddressSpaceSize && m.checkRange(address, int(length), ReadWrite) == nil
}

// Sbrk grows the heap by size bytes, making the covered pages writable, and
// returns the previous heap top. It returns 0 when the heap would overflow
// the address space.
func (m *Memory) Sbrk(size uint64) uint32 {
	result := m.heapPointer
	if size == 0 {
		return result
	}
	next := uint64(m.heapPointer) + size
	if next > AddressSpaceSize {
		return 0
	}
	firstPage := (uint64(m.heapPointer) + PageSize - 1) / PageSize
	lastPage := (next + PageSize - 1) / PageSize
	for idx := firstPage; idx < lastPage; idx++ {
		m.SetAccess(uint32(idx), ReadWrite)
	}
	m.heapPointer = uint32(next)
	return result
}

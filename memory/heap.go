package memory

import (
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/hw"
)

const (
	HeapSize  = 32 * 1024
	Alignment = 8

	// Block header layout, little-endian words in RAM:
	// size, flags, free, next, prev, magic.
	HeaderSize = 24

	offSize  = 0
	offFlags = 4
	offFree  = 8
	offNext  = 12
	offPrev  = 16
	offMagic = 20

	MagicAllocated = 0xDEADBEEF
	MagicFree      = 0xFEEDFACE
)

// ErrHeapSpan is reported when the requested heap span cannot be laid
// over physical memory.
var ErrHeapSpan = errors.New("heap span outside physical memory")

// Manager owns the kernel heap. Block headers live in the managed RAM
// itself, linked by physical address; the manager is the only code that
// touches them. Mutators mask interrupts so allocation is safe from
// handler context.
type Manager struct {
	phys *Physical
	cpu  hw.CPU
	l    hclog.Logger

	heapStart uint32
	heapSize  uint32
	head      uint32
	ready     bool
	checked   bool

	allocations uint32

	regions    [MaxRegions]Region
	numRegions int

	guardBase uint32
}

func NewManager(phys *Physical, cpu hw.CPU, l hclog.Logger) *Manager {
	return &Manager{
		phys: phys,
		cpu:  cpu,
		l:    l,
	}
}

// Init lays a single free block over the heap span.
func (m *Manager) Init(heapStart, heapSize uint32) abi.Status {
	if heapSize < HeaderSize+Alignment || !m.phys.Contains(heapStart, heapSize) {
		m.l.Error("heap-init-failed", "start", heapStart, "size", heapSize)
		return abi.StatusInvalidParam
	}

	m.heapStart = heapStart
	m.heapSize = heapSize
	m.head = heapStart

	m.wr(m.head+offSize, heapSize-HeaderSize)
	m.wr(m.head+offFlags, 0)
	m.wr(m.head+offFree, 1)
	m.wr(m.head+offNext, 0)
	m.wr(m.head+offPrev, 0)
	m.wr(m.head+offMagic, MagicFree)

	m.allocations = 0
	m.numRegions = 0
	m.ready = true

	m.l.Info("heap-init", "start", heapStart, "size", heapSize)

	return abi.StatusOK
}

// SetChecked makes every mutation re-validate the block list. Debug
// aid; the tags stay authoritative either way.
func (m *Manager) SetChecked(on bool) {
	m.checked = on
}

func (m *Manager) Ready() bool {
	return m.ready
}

// Alloc returns the address of a block of at least size bytes, or 0 if
// the request cannot be satisfied. size is aligned up to 8 bytes and the
// scan is first-fit: the lowest free block that fits wins, split when
// the remainder can hold a header plus one alignment quantum.
func (m *Manager) Alloc(size, flags uint32) uint32 {
	if !m.ready || size == 0 {
		return 0
	}

	size = alignUp(size)

	pm := m.cpu.DisableInterrupts()
	defer m.cpu.RestoreInterrupts(pm)

	for cur := m.head; cur != 0; cur = m.rd(cur + offNext) {
		if m.rd(cur+offFree) == 0 || m.rd(cur+offSize) < size {
			continue
		}

		if m.rd(cur+offSize) > size+HeaderSize+Alignment {
			m.split(cur, size)
		}

		m.wr(cur+offFree, 0)
		m.wr(cur+offFlags, flags)
		m.wr(cur+offMagic, MagicAllocated)

		m.allocations++

		data := cur + HeaderSize

		if flags&abi.AllocZero != 0 {
			m.zero(data, m.rd(cur+offSize))
		}

		if m.checked && !m.validateLocked() {
			m.l.Error("heap-inconsistent", "op", "alloc", "addr", data)
		}

		m.l.Trace("heap-alloc", "addr", data, "size", size, "flags", flags)

		return data
	}

	m.l.Debug("heap-exhausted", "size", size)

	return 0
}

// Free returns a block to the heap. Invalid or already-free addresses
// are ignored; corruption is detected, not repaired.
func (m *Manager) Free(addr uint32) {
	if !m.ready || addr == 0 {
		return
	}

	hdr := addr - HeaderSize
	if hdr < m.heapStart || !m.phys.Contains(hdr, HeaderSize) {
		m.l.Debug("heap-bad-free", "addr", addr)
		return
	}

	pm := m.cpu.DisableInterrupts()
	defer m.cpu.RestoreInterrupts(pm)

	if m.rd(hdr+offMagic) != MagicAllocated || m.rd(hdr+offFree) != 0 {
		m.l.Debug("heap-bad-free", "addr", addr, "magic", m.rd(hdr+offMagic))
		return
	}

	m.wr(hdr+offFree, 1)
	m.wr(hdr+offMagic, MagicFree)

	next := m.rd(hdr + offNext)
	if next != 0 && m.rd(next+offFree) != 0 {
		m.merge(hdr, next)
	}

	prev := m.rd(hdr + offPrev)
	if prev != 0 && m.rd(prev+offFree) != 0 {
		m.merge(prev, hdr)
	}

	if m.checked && !m.validateLocked() {
		m.l.Error("heap-inconsistent", "op", "free", "addr", addr)
	}

	m.l.Trace("heap-free", "addr", addr)
}

// Realloc grows or shrinks an allocation. A zero addr allocates, a zero
// size frees. When the block already fits the request the same address
// comes back; otherwise the contents move to a fresh block.
func (m *Manager) Realloc(addr, size uint32) uint32 {
	if addr == 0 {
		return m.Alloc(size, 0)
	}

	if size == 0 {
		m.Free(addr)
		return 0
	}

	hdr := addr - HeaderSize
	if hdr < m.heapStart || !m.phys.Contains(hdr, HeaderSize) {
		return 0
	}

	if m.rd(hdr+offMagic) != MagicAllocated || m.rd(hdr+offFree) != 0 {
		return 0
	}

	oldSize := m.rd(hdr + offSize)
	if oldSize >= alignUp(size) {
		return addr
	}

	// The replacement inherits the original flags, so a zeroed block
	// grows with a zeroed extension.
	next := m.Alloc(size, m.rd(hdr+offFlags))
	if next == 0 {
		return 0
	}

	src, err := m.phys.Slice(addr, oldSize)
	if err != nil {
		return 0
	}

	dst, err := m.phys.Slice(next, oldSize)
	if err != nil {
		return 0
	}

	copy(dst, src)

	m.Free(addr)

	return next
}

// Validate walks the block list checking tag/flag consistency and size
// alignment. False on the first violation.
func (m *Manager) Validate() bool {
	if !m.ready {
		return false
	}

	pm := m.cpu.DisableInterrupts()
	defer m.cpu.RestoreInterrupts(pm)

	return m.validateLocked()
}

func (m *Manager) validateLocked() bool {
	for cur := m.head; cur != 0; cur = m.rd(cur + offNext) {
		var (
			magic = m.rd(cur + offMagic)
			free  = m.rd(cur + offFree)
			size  = m.rd(cur + offSize)
		)

		if free != 0 && magic != MagicFree {
			return false
		}

		if free == 0 && magic != MagicAllocated {
			return false
		}

		if size%Alignment != 0 {
			return false
		}
	}

	return true
}

type Stats struct {
	Total                uint32
	Free                 uint32
	Used                 uint32
	LargestFree          uint32
	Allocations          uint32
	FreeBlocks           uint32
	FragmentationPercent uint32
}

func (m *Manager) Stats() Stats {
	st := Stats{
		Total:       m.heapSize,
		Allocations: m.allocations,
	}

	if !m.ready {
		return st
	}

	pm := m.cpu.DisableInterrupts()
	defer m.cpu.RestoreInterrupts(pm)

	for cur := m.head; cur != 0; cur = m.rd(cur + offNext) {
		size := m.rd(cur + offSize)

		if m.rd(cur+offFree) != 0 {
			st.Free += size
			st.FreeBlocks++

			if size > st.LargestFree {
				st.LargestFree = size
			}
		} else {
			st.Used += size
		}
	}

	if st.Free > 0 {
		st.FragmentationPercent = 100 - st.LargestFree*100/st.Free
	}

	return st
}

// DumpBlocks logs every block header. Debug surface for the monitor.
func (m *Manager) DumpBlocks(l hclog.Logger) {
	if !m.ready {
		return
	}

	for cur := m.head; cur != 0; cur = m.rd(cur + offNext) {
		l.Info("heap-block",
			"hdr", cur,
			"size", m.rd(cur+offSize),
			"free", m.rd(cur+offFree),
			"magic", m.rd(cur+offMagic),
		)
	}
}

func (m *Manager) split(cur, size uint32) {
	var (
		rest = cur + HeaderSize + size
		next = m.rd(cur + offNext)
	)

	m.wr(rest+offSize, m.rd(cur+offSize)-size-HeaderSize)
	m.wr(rest+offFlags, 0)
	m.wr(rest+offFree, 1)
	m.wr(rest+offNext, next)
	m.wr(rest+offPrev, cur)
	m.wr(rest+offMagic, MagicFree)

	if next != 0 {
		m.wr(next+offPrev, rest)
	}

	m.wr(cur+offSize, size)
	m.wr(cur+offNext, rest)
}

// merge absorbs b into a; b must be a's next neighbor and both free.
func (m *Manager) merge(a, b uint32) {
	next := m.rd(b + offNext)

	m.wr(a+offSize, m.rd(a+offSize)+HeaderSize+m.rd(b+offSize))
	m.wr(a+offNext, next)

	if next != 0 {
		m.wr(next+offPrev, a)
	}
}

func (m *Manager) zero(addr, size uint32) {
	b, err := m.phys.Slice(addr, size)
	if err != nil {
		return
	}

	for i := range b {
		b[i] = 0
	}
}

func (m *Manager) rd(addr uint32) uint32 {
	v, err := m.phys.Read32(addr)
	if err != nil {
		return 0
	}

	return v
}

func (m *Manager) wr(addr, val uint32) {
	m.phys.Write32(addr, val)
}

func alignUp(size uint32) uint32 {
	return (size + Alignment - 1) &^ (Alignment - 1)
}

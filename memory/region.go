package memory

import "github.com/Lnrchaos/tweakngeek-firmware/abi"

const MaxRegions = 32

// Region records a protection intent for an address range. This core
// tracks the table; wiring it to access-fault hardware belongs to an
// MPU driver outside the kernel.
type Region struct {
	Start      uint32
	Size       uint32
	Protection uint32
	Allocated  bool
	Owner      uint32
}

// Protect appends a region to the table. Regions are never removed.
func (m *Manager) Protect(addr, size, prot, owner uint32) abi.Status {
	if addr == 0 || size == 0 {
		return abi.StatusInvalidParam
	}

	if m.numRegions >= MaxRegions {
		m.l.Warn("region-table-full", "addr", addr)
		return abi.StatusBusy
	}

	m.regions[m.numRegions] = Region{
		Start:      addr,
		Size:       size,
		Protection: prot,
		Allocated:  true,
		Owner:      owner,
	}

	m.numRegions++

	m.l.Trace("region-protect", "addr", addr, "size", size, "prot", prot, "owner", owner)

	return abi.StatusOK
}

func (m *Manager) Regions() []Region {
	out := make([]Region, m.numRegions)
	copy(out, m.regions[:m.numRegions])

	return out
}

package abi

// Allocation flags.
const (
	AllocZero  uint32 = 1 << 0
	AllocAlign uint32 = 1 << 1
	AllocDMA   uint32 = 1 << 2
)

// Region protection flags.
const (
	ProtRead   uint32 = 1 << 0
	ProtWrite  uint32 = 1 << 1
	ProtExec   uint32 = 1 << 2
	ProtUser   uint32 = 1 << 3
	ProtKernel uint32 = 1 << 4
)

// Process creation flags.
const (
	ProcSystem    uint32 = 1 << 0
	ProcUser      uint32 = 1 << 1
	ProcRealtime  uint32 = 1 << 2
	ProcSuspended uint32 = 1 << 3
)

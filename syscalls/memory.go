package syscalls

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
)

// MaxAllocSize caps a single trap-requested allocation.
const MaxAllocSize = 1024 * 1024

// R1 carries an alignment hint the allocator does not need; every
// block it hands out is already 8-byte aligned.
func sysMemoryAlloc(l hclog.Logger, sys System, args SysArgs) uint32 {
	var (
		size  = args.Args.R0
		flags = args.Args.R2
	)

	if size == 0 || size > MaxAllocSize {
		return 0
	}

	addr := sys.Alloc(size, flags)

	l.Trace("sys-memory-alloc", "size", size, "addr", addr)

	return addr
}

func sysMemoryFree(l hclog.Logger, sys System, args SysArgs) uint32 {
	var (
		addr = args.Args.R0
	)

	if addr == 0 {
		return 1
	}

	sys.Free(addr)

	l.Trace("sys-memory-free", "addr", addr)

	return 0
}

func init() {
	Syscalls[abi.SysMemoryAlloc] = sysMemoryAlloc
	Syscalls[abi.SysMemoryFree] = sysMemoryFree
}

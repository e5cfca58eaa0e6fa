package kernel

import (
	"fmt"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/sched"
)

// The methods below are the surface the syscall handlers run against.

// CreateProcess services the process-create trap. The caller supplies
// entry point, stack size, priority and flags; the name is synthesized
// from the entry address since no pointer crosses the trap boundary.
func (k *Kernel) CreateProcess(entry, stackSize, prio, flags uint32) uint32 {
	name := fmt.Sprintf("proc-%x", entry)

	return k.sched.Create(name, entry, stackSize, sched.Priority(prio), flags)
}

func (k *Kernel) TerminateProcess(id uint32) abi.Status {
	return k.sched.Terminate(id)
}

func (k *Kernel) Alloc(size, flags uint32) uint32 {
	return k.mgr.Alloc(size, flags)
}

func (k *Kernel) Free(addr uint32) {
	k.mgr.Free(addr)
}

func (k *Kernel) Yield() {
	k.sched.Yield()
}

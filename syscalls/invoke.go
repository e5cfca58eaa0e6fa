package syscalls

import (
	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/log"
	"github.com/Lnrchaos/tweakngeek-firmware/trap"
)

// Registrar accepts syscall registrations; the trap dispatcher
// implements it.
type Registrar interface {
	RegisterSyscall(num uint8, fn trap.SyscallFn) abi.Status
}

// Invoker binds the handler table to one kernel.
type Invoker struct {
	Kernel System
}

// Install registers every populated table slot with the dispatcher.
func (i *Invoker) Install(r Registrar) abi.Status {
	for num, fn := range Syscalls {
		if fn == nil {
			continue
		}

		idx := uint8(num)
		handler := fn

		st := r.RegisterSyscall(idx, func(a1, a2, a3, a4 uint32) uint32 {
			return handler(log.L, i.Kernel, SysArgs{
				Index: idx,
				Args:  Request{R0: a1, R1: a2, R2: a3, R3: a4},
			})
		})

		if st != abi.StatusOK {
			return st
		}
	}

	return abi.StatusOK
}

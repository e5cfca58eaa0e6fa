package syscalls

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/sched"
)

func sysProcessCreate(l hclog.Logger, sys System, args SysArgs) uint32 {
	var (
		entry = args.Args.R0
		stack = args.Args.R1
		prio  = args.Args.R2
		flags = args.Args.R3
	)

	if entry == 0 || stack < sched.MinStackSize {
		return 0
	}

	id := sys.CreateProcess(entry, stack, prio, flags)

	l.Debug("sys-process-create", "entry", entry, "stack", stack, "pid", id)

	return id
}

func sysProcessTerminate(l hclog.Logger, sys System, args SysArgs) uint32 {
	var (
		id = args.Args.R0
	)

	if id == 0 {
		return 1
	}

	if st := sys.TerminateProcess(id); st != abi.StatusOK {
		return 1
	}

	l.Debug("sys-process-terminate", "pid", id)

	return 0
}

func init() {
	Syscalls[abi.SysProcessCreate] = sysProcessCreate
	Syscalls[abi.SysProcessTerminate] = sysProcessTerminate
}

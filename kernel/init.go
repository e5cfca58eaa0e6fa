package kernel

import (
	"github.com/pkg/errors"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/boot"
	"github.com/Lnrchaos/tweakngeek-firmware/hw"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
	"github.com/Lnrchaos/tweakngeek-firmware/syscalls"
)

const (
	// reservedLow keeps the bottom of RAM clear of the heap; the vector
	// scratch area and boot data live there.
	reservedLow = 0x1000

	// idleStackSize is what the idle process gets, wedged between the
	// heap and the main stack region.
	idleStackSize = 1024
)

// Init runs the whole bring-up chain: hardware, clocks, tick timer,
// heap, traps, scheduler. A failure latches the error state and the
// stage it happened in; the boot sequencer keeps the detailed record.
func (k *Kernel) Init() abi.Status {
	k.state = StateBoot
	started := k.ticks

	k.seq.SetStage(boot.StageStart)

	if st := k.seq.InitHardware(); st != abi.StatusOK {
		return k.initFailed(boot.StageHardwareInit, st)
	}

	if st := k.seq.InitClocks(); st != abi.StatusOK {
		return k.initFailed(boot.StageClockInit, st)
	}

	if st := k.seq.InitTimers(hw.TickRateHz); st != abi.StatusOK {
		return k.initFailed(boot.StageClockInit, st)
	}

	if st, _ := k.seq.Run(boot.StageMemoryInit, k.memoryInit); st != abi.StatusOK {
		return k.initFailed(boot.StageMemoryInit, st)
	}

	if st, _ := k.seq.Run(boot.StageInterruptInit, k.interruptInit); st != abi.StatusOK {
		return k.initFailed(boot.StageInterruptInit, st)
	}

	if st, _ := k.seq.Run(boot.StageSchedulerInit, k.schedulerInit); st != abi.StatusOK {
		return k.initFailed(boot.StageSchedulerInit, st)
	}

	k.seq.SetStage(boot.StageComplete)

	k.state = StateInit
	k.bootTimeMS = k.ticks - started

	k.l.Info("kernel-initialized", "boot-ms", k.bootTimeMS, "free", k.mgr.Stats().Free)

	return abi.StatusOK
}

func (k *Kernel) initFailed(stage boot.Stage, st abi.Status) abi.Status {
	k.state = StateError
	k.failedStage = stage

	k.l.Error("kernel-init-failed", "stage", stage.String(), "status", st.String())

	return st
}

// memoryInit lays out RAM: reserved words at the bottom, then the heap,
// the idle stack and the guarded main stack region.
func (k *Kernel) memoryInit() (abi.Status, error) {
	heapBase := k.mem.Base() + reservedLow

	if st := k.mgr.Init(heapBase, memory.HeapSize); st != abi.StatusOK {
		return st, errors.Wrapf(memory.ErrHeapSpan, "heap init: %s", st)
	}

	k.idleStackBase = heapBase + memory.HeapSize
	k.mainStackBase = k.idleStackBase + idleStackSize

	if !k.mem.Contains(k.mainStackBase, memory.StackRegionSize) {
		return abi.StatusNoMemory, errors.New("ram too small for the stack region")
	}

	if st := k.mgr.SetGuard(k.mainStackBase); st != abi.StatusOK {
		return st, errors.Errorf("stack guard: %s", st)
	}

	k.machine.SetStackPointer(k.mainStackBase + memory.StackRegionSize)

	prot := abi.ProtRead | abi.ProtWrite | abi.ProtKernel

	k.mgr.Protect(heapBase, memory.HeapSize, prot, 0)
	k.mgr.Protect(k.idleStackBase, idleStackSize, prot, 0)
	k.mgr.Protect(k.mainStackBase, memory.StackRegionSize, prot, 0)

	return abi.StatusOK, nil
}

// interruptInit stands up the trap dispatcher, points it at the
// machine's exception delivery and installs the syscall handlers.
func (k *Kernel) interruptInit() (abi.Status, error) {
	if st := k.disp.Init(); st != abi.StatusOK {
		return st, errors.Errorf("dispatcher init: %s", st)
	}

	k.disp.Attach(k.machine)
	k.machine.AttachSysTick(k.TickHandler)

	inv := &syscalls.Invoker{Kernel: k}

	if st := inv.Install(k.disp); st != abi.StatusOK {
		return st, errors.Errorf("syscall install: %s", st)
	}

	return abi.StatusOK, nil
}

func (k *Kernel) schedulerInit() (abi.Status, error) {
	if st := k.sched.Init(k.idleStackBase, idleStackSize); st != abi.StatusOK {
		return st, errors.Errorf("scheduler init: %s", st)
	}

	return abi.StatusOK, nil
}

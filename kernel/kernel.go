// Package kernel ties the subsystems together. It owns the boot
// sequencer, the memory manager, the trap dispatcher and the scheduler,
// and carries the lifecycle state machine from reset to shutdown.
package kernel

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/boot"
	"github.com/Lnrchaos/tweakngeek-firmware/hw"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
	"github.com/Lnrchaos/tweakngeek-firmware/sched"
	"github.com/Lnrchaos/tweakngeek-firmware/trap"
)

// State is the kernel lifecycle position.
type State uint32

const (
	StateBoot State = iota
	StateInit
	StateRunning
	StateSleep
	StateError
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateBoot:
		return "boot"
	case StateInit:
		return "init"
	case StateRunning:
		return "running"
	case StateSleep:
		return "sleep"
	case StateError:
		return "error"
	case StateShutdown:
		return "shutdown"
	}

	return "unknown"
}

// Kernel is the top-level object: one per machine.
type Kernel struct {
	machine hw.Machine
	mem     *memory.Physical
	l       hclog.Logger

	mgr   *memory.Manager
	disp  *trap.Dispatcher
	sched *sched.Scheduler
	seq   *boot.Sequencer

	state       State
	failedStage boot.Stage

	bootTimeMS uint32
	ticks      uint32
	critical   uint32

	idleStackBase uint32
	mainStackBase uint32
}

func New(machine hw.Machine, mem *memory.Physical, l hclog.Logger) *Kernel {
	k := &Kernel{
		machine: machine,
		mem:     mem,
		l:       l,
	}

	k.seq = boot.New(machine, l)
	k.mgr = memory.NewManager(mem, machine, l)
	k.disp = trap.New(machine, machine, mem, l)
	k.sched = sched.New(mem, k.mgr, machine, l)

	return k
}

// Start hands the machine to the scheduler. Init must have completed.
func (k *Kernel) Start() abi.Status {
	if k.state != StateInit {
		return abi.StatusError
	}

	k.sched.Start()
	k.state = StateRunning

	k.l.Info("kernel-running")

	return abi.StatusOK
}

// RunTicks pumps n timer periods through the machine, sleeping between
// them the way the idle loop would. Stops early once the machine halts.
func (k *Kernel) RunTicks(n int) {
	for i := 0; i < n; i++ {
		if k.machine.Halted() {
			return
		}

		k.machine.Tick()
		k.machine.WaitForInterrupt()
	}
}

// TickHandler is the system tick ISR body: advance time, then let the
// scheduler account the elapsed quantum.
func (k *Kernel) TickHandler() {
	k.EnterCritical()
	k.ticks++
	k.ExitCritical()

	k.sched.Tick()
}

// EnterCritical masks interrupts for the caller. Sections nest; only
// the outermost ExitCritical unmasks again.
func (k *Kernel) EnterCritical() {
	k.machine.DisableInterrupts()
	k.critical++
}

func (k *Kernel) ExitCritical() {
	if k.critical == 0 {
		return
	}

	k.critical--

	if k.critical == 0 {
		k.machine.RestoreInterrupts(0)
	}
}

func (k *Kernel) CriticalDepth() uint32 {
	return k.critical
}

// Shutdown stops the world: state latched, interrupts masked, machine
// halted.
func (k *Kernel) Shutdown() {
	k.l.Info("kernel-shutdown", "uptime-ms", k.UptimeMS())

	k.state = StateShutdown
	k.EnterCritical()

	k.machine.Halt(hw.HaltShutdown)
}

func (k *Kernel) State() State {
	return k.state
}

func (k *Kernel) Stage() boot.Stage {
	return k.seq.Stage()
}

// FailedStage names the boot stage a failed Init stopped at.
func (k *Kernel) FailedStage() boot.Stage {
	return k.failedStage
}

func (k *Kernel) TickCount() uint32 {
	return k.ticks
}

// UptimeMS is the tick count scaled to wall time. At a 1kHz tick the
// two are the same number.
func (k *Kernel) UptimeMS() uint32 {
	return k.ticks * (1000 / hw.TickRateHz)
}

func (k *Kernel) Scheduler() *sched.Scheduler {
	return k.sched
}

func (k *Kernel) Memory() *memory.Manager {
	return k.mgr
}

func (k *Kernel) Dispatcher() *trap.Dispatcher {
	return k.disp
}

func (k *Kernel) Boot() *boot.Sequencer {
	return k.seq
}

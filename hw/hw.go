// Package hw is the hardware boundary of the kernel. Everything the
// kernel does to the machine goes through these interfaces; the only
// implementation per target chip lives in a subpackage.
package hw

// Regs is 32-bit access to memory-mapped peripheral registers.
type Regs interface {
	Read32(addr uint32) uint32
	Write32(addr, val uint32)
}

// CPU is the core-local control surface: exception masking, sleep and
// the halt latch unrecoverable faults end in.
type CPU interface {
	// DisableInterrupts sets PRIMASK and returns its previous value so
	// nested callers can restore rather than unconditionally re-enable.
	DisableInterrupts() uint32
	RestoreInterrupts(primask uint32)
	InterruptsEnabled() bool

	WaitForInterrupt()

	Halt(code uint32)
	Halted() bool
}

// Core exposes the register context the scheduler saves and restores
// across a context switch: the callee-saved block r4-r11 and the stack
// pointer. The caller-saved half lives in the exception frame in RAM.
type Core interface {
	CalleeSaved() [8]uint32
	SetCalleeSaved(regs [8]uint32)
	StackPointer() uint32
	SetStackPointer(sp uint32)
}

// TrapSource is the machine side of exception delivery: the kernel
// attaches its entry points, the machine (or a test) raises traps.
type TrapSource interface {
	AttachIRQ(fn func(irq int))
	AttachSVC(fn func(frame uint32))
	AttachSysTick(fn func())

	// Tick raises the system tick exception if the tick timer is
	// enabled, honoring the current mask state.
	Tick()

	// Pend marks an external interrupt pending, delivering it now if
	// the controller and mask state allow.
	Pend(irq int)

	// SVCall executes a supervisor call with the given immediate and
	// argument registers, returning the value the handler wrote back
	// into the trap frame.
	SVCall(imm uint8, r0, r1, r2, r3 uint32) uint32
}

// Machine is the full device surface the kernel boots against. A
// simulated chip implements all four faces; the kernel never reaches
// around it.
type Machine interface {
	Regs
	CPU
	Core
	TrapSource
}

// Halt codes.
const (
	HaltNone uint32 = iota
	HaltShutdown
	HaltHardFault
	HaltMemFault
	HaltBusFault
	HaltUsageFault
	HaltNMI
)

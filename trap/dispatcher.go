// Package trap is the exception side of the kernel: a descriptor table
// over the NVIC for the 63 external interrupts, the common vectored
// entry with nesting statistics, and the supervisor-call dispatch table
// syscalls arrive through.
package trap

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/hw"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
)

// MaxIRQ is the number of external interrupt lines on the WB55.
const MaxIRQ = 63

// Where the vector table sits. Flash base on the real part.
const vectorTableBase = 0x08000000

// System handler priorities: SVC above everything so syscalls preempt,
// PendSV below everything so context switches run last, SysTick in the
// middle.
const (
	prioSVC     = 0x00
	prioPendSV  = 0xFF
	prioSysTick = 0x80
)

// Priority is the NVIC priority level, 0 highest.
type Priority uint8

const (
	PriorityHighest Priority = 0
	PriorityHigh    Priority = 1
	PriorityNormal  Priority = 2
	PriorityLow     Priority = 3
	PriorityLowest  Priority = 4
)

// Handler runs in exception context. It must not block.
type Handler func(irq int)

// Descriptor is one line of the interrupt table.
type Descriptor struct {
	IRQ      int
	Name     string
	Priority Priority
	Enabled  bool
	Count    uint32

	handler Handler
}

// Stats mirrors the counters the common entry maintains.
type Stats struct {
	TotalInterrupts     uint32
	NestedInterrupts    uint32
	MaxNestingLevel     uint32
	CurrentNestingLevel uint32
	SystemCalls         uint32
}

// Dispatcher owns the interrupt and syscall tables. One per machine;
// the device delivers every trap through its entry points.
type Dispatcher struct {
	regs hw.Regs
	cpu  hw.CPU
	mem  *memory.Physical
	l    hclog.Logger

	table    [MaxIRQ]Descriptor
	syscalls [abi.SyscallMaxCount]SyscallFn

	stats       Stats
	nesting     uint32
	initialized bool
}

func New(regs hw.Regs, cpu hw.CPU, mem *memory.Physical, l hclog.Logger) *Dispatcher {
	return &Dispatcher{
		regs: regs,
		cpu:  cpu,
		mem:  mem,
		l:    l,
	}
}

// Init resets both tables, points every line at the counting default
// handler, and seeds the SCB: vector table offset plus the system
// handler priority bytes in SHPR2/SHPR3.
func (d *Dispatcher) Init() abi.Status {
	for i := range d.table {
		d.table[i] = Descriptor{
			IRQ:      i,
			Name:     vectorNames[i],
			Priority: PriorityNormal,
			handler:  d.unhandled,
		}
	}

	d.syscalls = [abi.SyscallMaxCount]SyscallFn{}
	d.stats = Stats{}
	d.nesting = 0

	d.regs.Write32(hw.SCBVTOR, vectorTableBase)

	shpr2 := d.regs.Read32(hw.SCBSHPR2)
	d.regs.Write32(hw.SCBSHPR2, shpr2&0x00FFFFFF | prioSVC<<24)

	// SVC sits in SHPR2 byte 3; PendSV and SysTick share SHPR3 in
	// bytes 2 and 3. The masks have to clear exactly one byte each or
	// the second write wipes the first.
	shpr3 := d.regs.Read32(hw.SCBSHPR3)
	shpr3 = shpr3&0xFF00FFFF | prioPendSV<<16
	shpr3 = shpr3&0x00FFFFFF | prioSysTick<<24
	d.regs.Write32(hw.SCBSHPR3, shpr3)

	d.initialized = true

	d.l.Info("interrupt-init", "irqs", MaxIRQ, "syscalls", abi.SyscallMaxCount)

	return abi.StatusOK
}

// Attach points a trap source's external and supervisor entries at this
// dispatcher. The tick entry stays with the caller.
func (d *Dispatcher) Attach(src hw.TrapSource) {
	src.AttachIRQ(d.CommonEntry)
	src.AttachSVC(d.SVCEntry)
}

// Register installs a handler. The descriptor update and the NVIC
// priority write happen under a masked window that restores the
// caller's prior mask state rather than unconditionally re-enabling.
func (d *Dispatcher) Register(irq int, fn Handler, prio Priority, name string) abi.Status {
	if !d.initialized {
		return abi.StatusError
	}

	if irq < 0 || irq >= MaxIRQ || fn == nil || prio > PriorityLowest {
		return abi.StatusInvalidParam
	}

	pm := d.cpu.DisableInterrupts()

	desc := &d.table[irq]
	desc.handler = fn
	desc.Priority = prio
	desc.Count = 0

	if name != "" {
		desc.Name = name
	}

	d.writePriority(irq, prio)

	d.cpu.RestoreInterrupts(pm)

	d.l.Debug("irq-register", "irq", irq, "name", desc.Name, "priority", prio)

	return abi.StatusOK
}

// Unregister disables the line and puts the descriptor back to its
// reset state: default handler, vector-list name, normal priority.
func (d *Dispatcher) Unregister(irq int) abi.Status {
	if st := d.check(irq); st != abi.StatusOK {
		return st
	}

	d.Disable(irq)

	pm := d.cpu.DisableInterrupts()

	d.table[irq] = Descriptor{
		IRQ:      irq,
		Name:     vectorNames[irq],
		Priority: PriorityNormal,
		handler:  d.unhandled,
	}

	d.cpu.RestoreInterrupts(pm)

	d.l.Debug("irq-unregister", "irq", irq)

	return abi.StatusOK
}

func (d *Dispatcher) Enable(irq int) abi.Status {
	if st := d.check(irq); st != abi.StatusOK {
		return st
	}

	pm := d.cpu.DisableInterrupts()

	d.regs.Write32(hw.NVICISER+uint32(irq/32)*4, uint32(1)<<(irq%32))
	d.table[irq].Enabled = true

	d.cpu.RestoreInterrupts(pm)

	return abi.StatusOK
}

func (d *Dispatcher) Disable(irq int) abi.Status {
	if st := d.check(irq); st != abi.StatusOK {
		return st
	}

	pm := d.cpu.DisableInterrupts()

	d.regs.Write32(hw.NVICICER+uint32(irq/32)*4, uint32(1)<<(irq%32))
	d.table[irq].Enabled = false

	d.cpu.RestoreInterrupts(pm)

	return abi.StatusOK
}

func (d *Dispatcher) SetPriority(irq int, prio Priority) abi.Status {
	if st := d.check(irq); st != abi.StatusOK {
		return st
	}

	if prio > PriorityLowest {
		return abi.StatusInvalidParam
	}

	pm := d.cpu.DisableInterrupts()

	d.table[irq].Priority = prio
	d.writePriority(irq, prio)

	d.cpu.RestoreInterrupts(pm)

	return abi.StatusOK
}

// CommonEntry is the vectored entry every external interrupt funnels
// through: statistics, per-line count, then the registered handler.
func (d *Dispatcher) CommonEntry(irq int) {
	if !d.initialized || irq < 0 || irq >= MaxIRQ {
		return
	}

	d.nesting++
	d.stats.TotalInterrupts++
	d.stats.CurrentNestingLevel = d.nesting

	if d.nesting > 1 {
		d.stats.NestedInterrupts++
	}

	if d.nesting > d.stats.MaxNestingLevel {
		d.stats.MaxNestingLevel = d.nesting
	}

	desc := &d.table[irq]
	desc.Count++

	if desc.handler != nil {
		desc.handler(irq)
	}

	d.nesting--
	d.stats.CurrentNestingLevel = d.nesting
}

func (d *Dispatcher) Stats() Stats {
	return d.stats
}

func (d *Dispatcher) NestingLevel() uint32 {
	return d.nesting
}

func (d *Dispatcher) InISR() bool {
	return d.nesting > 0
}

// Descriptors snapshots the whole table, enabled or not.
func (d *Dispatcher) Descriptors() []Descriptor {
	out := make([]Descriptor, MaxIRQ)
	copy(out, d.table[:])

	return out
}

func (d *Dispatcher) check(irq int) abi.Status {
	if !d.initialized {
		return abi.StatusError
	}

	if irq < 0 || irq >= MaxIRQ {
		return abi.StatusInvalidParam
	}

	return abi.StatusOK
}

// writePriority programs the 8-bit IPR field for one line. Only the
// upper 4 bits of each byte are implemented on Cortex-M4.
func (d *Dispatcher) writePriority(irq int, prio Priority) {
	word := hw.NVICIPR + uint32(irq/4)*4
	shift := uint32(irq%4) * 8

	cur := d.regs.Read32(word)
	d.regs.Write32(word, cur&^(0xFF<<shift) | uint32(prio)<<4<<shift)
}

func (d *Dispatcher) unhandled(irq int) {
	d.l.Trace("unhandled-irq", "irq", irq, "name", vectorNames[irq])
}

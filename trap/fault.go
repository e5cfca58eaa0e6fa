package trap

import "github.com/Lnrchaos/tweakngeek-firmware/hw"

// The fault entries are terminal. A real part would dump the fault
// status registers here; we log what we know and latch the halt so the
// run loop stops instead of spinning in a dead handler.

func (d *Dispatcher) HardFault() {
	d.fault("hard-fault", hw.HaltHardFault)
}

func (d *Dispatcher) MemManageFault() {
	d.fault("memmanage-fault", hw.HaltMemFault)
}

func (d *Dispatcher) BusFault() {
	d.fault("bus-fault", hw.HaltBusFault)
}

func (d *Dispatcher) UsageFault() {
	d.fault("usage-fault", hw.HaltUsageFault)
}

func (d *Dispatcher) NMI() {
	d.fault("nmi", hw.HaltNMI)
}

func (d *Dispatcher) fault(event string, code uint32) {
	d.l.Error(event, "nesting", d.nesting)
	d.cpu.Halt(code)
}

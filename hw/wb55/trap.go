package wb55

import "math/bits"

const (
	maxIRQ = 63

	// Hardware exception frame: r0-r3, r12, lr, pc, xPSR.
	frameBytes = 32

	thumbSVC = 0xDF
)

func (d *Device) AttachIRQ(fn func(irq int)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.irqEntry = fn
}

func (d *Device) AttachSVC(fn func(frame uint32)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.svcEntry = fn
}

func (d *Device) AttachSysTick(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tickEntry = fn
}

// Tick raises the system tick exception. With PRIMASK set the tick goes
// pending and fires once on the next unmask, like the real exception.
func (d *Device) Tick() {
	d.mu.Lock()

	const on = 0x3 // ENABLE | TICKINT

	if d.halted || d.stkCTRL&on != on {
		d.mu.Unlock()
		return
	}

	if d.primask != 0 {
		d.tickPending = true
		d.mu.Unlock()
		return
	}

	fn := d.tickEntry
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Pend marks an external interrupt pending. Delivery happens now if the
// NVIC enable bit is set and PRIMASK is clear, otherwise when both are.
func (d *Device) Pend(irq int) {
	if irq < 0 || irq >= maxIRQ {
		return
	}

	d.mu.Lock()
	d.pending[irq/32] |= 1 << (irq % 32)
	d.mu.Unlock()

	d.drain()
}

func (d *Device) drain() {
	for {
		d.mu.Lock()

		if d.halted || d.primask != 0 {
			d.mu.Unlock()
			return
		}

		if d.tickPending && d.tickEntry != nil {
			d.tickPending = false
			fn := d.tickEntry
			d.mu.Unlock()

			fn()
			continue
		}

		irq := -1

		for w := range d.pending {
			if live := d.pending[w] & d.enabled[w]; live != 0 {
				bit := bits.TrailingZeros32(live)
				irq = w*32 + bit
				d.pending[w] &^= 1 << bit
				break
			}
		}

		if irq < 0 || d.irqEntry == nil {
			d.mu.Unlock()
			return
		}

		fn := d.irqEntry
		d.mu.Unlock()

		fn(irq)
	}
}

// SVCall executes a supervisor call the way the core does it: the svc
// instruction sits in memory, the exception pushes the caller-saved
// frame onto the current stack, the handler runs against that frame and
// the written-back R0 slot becomes the caller's return value.
func (d *Device) SVCall(imm uint8, r0, r1, r2, r3 uint32) uint32 {
	d.mem.Write8(d.cfg.Scratch, imm)
	d.mem.Write8(d.cfg.Scratch+1, thumbSVC)

	d.mu.Lock()
	sp := d.regs[13] - frameBytes
	d.regs[13] = sp
	r12 := d.regs[12]
	lr := d.regs[14]
	entry := d.svcEntry
	d.mu.Unlock()

	d.mem.Write32(sp+0, r0)
	d.mem.Write32(sp+4, r1)
	d.mem.Write32(sp+8, r2)
	d.mem.Write32(sp+12, r3)
	d.mem.Write32(sp+16, r12)
	d.mem.Write32(sp+20, lr)
	d.mem.Write32(sp+24, d.cfg.Scratch+2)
	d.mem.Write32(sp+28, 0x01000000)

	if entry != nil {
		entry(sp)
	}

	res, _ := d.mem.Read32(sp)

	// Exception return unstacks the frame only when the handler left SP
	// on it. A handler that switched stacks already points SP at the
	// incoming context and the caller's frame stays stacked until that
	// process runs again.
	d.mu.Lock()
	if d.regs[13] == sp {
		d.regs[13] = sp + frameBytes
	}
	d.mu.Unlock()

	return res
}

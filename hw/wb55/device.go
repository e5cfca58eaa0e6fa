// Package wb55 models the STM32WB55-class target the kernel runs on:
// register file, clock tree ready-flag sequencing, NVIC, SysTick and
// trap delivery, all against a shared physical RAM. It is the single
// implementation of the hw interfaces.
package wb55

import (
	"sync"

	"github.com/Lnrchaos/tweakngeek-firmware/hw"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
)

type Config struct {
	// Reads of RCC_CR with the oscillator enabled before its ready
	// flag latches. Zero means the default of 3.
	HSEReadyAfter int
	PLLReadyAfter int

	// Stuck oscillators never report ready, for boot timeout paths.
	StuckHSE bool
	StuckPLL bool

	// Scratch is the RAM address trap instructions are synthesized at.
	// Zero picks a spot in the low reserved page.
	Scratch uint32
}

type Device struct {
	mu  sync.Mutex
	mem *memory.Physical
	cfg Config

	regs      [16]uint32
	primask   uint32
	halted    bool
	haltCode  uint32
	idleWaits uint64

	rccCR      uint32
	rccCFGR    uint32
	rccPLLCFGR uint32
	hseReads   int
	pllReads   int

	pwrCR1   uint32
	flashACR uint32

	stkCTRL uint32
	stkLOAD uint32
	stkVAL  uint32

	vtor  uint32
	shpr1 uint32
	shpr2 uint32
	shpr3 uint32

	enabled [2]uint32
	pending [2]uint32
	prio    [16]uint32

	tickPending bool

	irqEntry  func(irq int)
	svcEntry  func(frame uint32)
	tickEntry func()
}

func New(mem *memory.Physical, cfg Config) *Device {
	if cfg.HSEReadyAfter == 0 {
		cfg.HSEReadyAfter = 3
	}

	if cfg.PLLReadyAfter == 0 {
		cfg.PLLReadyAfter = 3
	}

	if cfg.Scratch == 0 {
		cfg.Scratch = mem.Base() + 0x80
	}

	return &Device{
		mem: mem,
		cfg: cfg,
	}
}

func (d *Device) Memory() *memory.Physical {
	return d.mem
}

// CPU surface.

func (d *Device) DisableInterrupts() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.primask
	d.primask = 1

	return prev
}

func (d *Device) RestoreInterrupts(primask uint32) {
	d.mu.Lock()
	d.primask = primask
	d.mu.Unlock()

	if primask == 0 {
		d.drain()
	}
}

func (d *Device) InterruptsEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.primask == 0
}

func (d *Device) WaitForInterrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.idleWaits++
}

func (d *Device) IdleWaits() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.idleWaits
}

func (d *Device) Halt(code uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.halted = true
	d.haltCode = code
}

func (d *Device) Halted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.halted
}

func (d *Device) HaltCode() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.haltCode
}

// Core surface.

func (d *Device) CalleeSaved() [8]uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out [8]uint32
	copy(out[:], d.regs[4:12])

	return out
}

func (d *Device) SetCalleeSaved(regs [8]uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	copy(d.regs[4:12], regs[:])
}

func (d *Device) StackPointer() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.regs[13]
}

func (d *Device) SetStackPointer(sp uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs[13] = sp
}

// Regs surface. Addresses outside the modeled map read as zero and
// swallow writes, like reserved space on the real part.

func (d *Device) Read32(addr uint32) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch addr {
	case hw.RCCCR:
		return d.readRCCCR()
	case hw.RCCCFGR:
		return d.rccCFGR
	case hw.RCCPLLCFGR:
		return d.rccPLLCFGR
	case hw.PWRCR1:
		return d.pwrCR1
	case hw.FlashACR:
		return d.flashACR
	case hw.SysTickCTRL:
		return d.stkCTRL
	case hw.SysTickLOAD:
		return d.stkLOAD
	case hw.SysTickVAL:
		return d.stkVAL
	case hw.SCBVTOR:
		return d.vtor
	case hw.SCBSHPR1:
		return d.shpr1
	case hw.SCBSHPR2:
		return d.shpr2
	case hw.SCBSHPR3:
		return d.shpr3
	}

	switch {
	case addr >= hw.NVICISER && addr < hw.NVICISER+8:
		return d.enabled[(addr-hw.NVICISER)/4]
	case addr >= hw.NVICICER && addr < hw.NVICICER+8:
		return d.enabled[(addr-hw.NVICICER)/4]
	case addr >= hw.NVICISPR && addr < hw.NVICISPR+8:
		return d.pending[(addr-hw.NVICISPR)/4]
	case addr >= hw.NVICICPR && addr < hw.NVICICPR+8:
		return d.pending[(addr-hw.NVICICPR)/4]
	case addr >= hw.NVICIPR && addr < hw.NVICIPR+64:
		return d.prio[(addr-hw.NVICIPR)/4]
	}

	return 0
}

func (d *Device) Write32(addr, val uint32) {
	d.mu.Lock()

	drain := false

	switch addr {
	case hw.RCCCR:
		d.writeRCCCR(val)
	case hw.RCCCFGR:
		// SWS follows SW as soon as the switch is requested.
		sw := val & hw.RCCCFGRSWMask
		d.rccCFGR = (val &^ uint32(hw.RCCCFGRSWSMask)) | sw<<hw.RCCCFGRSWSPos
	case hw.RCCPLLCFGR:
		d.rccPLLCFGR = val
	case hw.PWRCR1:
		d.pwrCR1 = val
	case hw.FlashACR:
		d.flashACR = val
	case hw.SysTickCTRL:
		d.stkCTRL = val
	case hw.SysTickLOAD:
		d.stkLOAD = val
	case hw.SysTickVAL:
		d.stkVAL = 0
	case hw.SCBVTOR:
		d.vtor = val
	case hw.SCBSHPR1:
		d.shpr1 = val
	case hw.SCBSHPR2:
		d.shpr2 = val
	case hw.SCBSHPR3:
		d.shpr3 = val
	default:
		switch {
		case addr >= hw.NVICISER && addr < hw.NVICISER+8:
			d.enabled[(addr-hw.NVICISER)/4] |= val
			drain = true
		case addr >= hw.NVICICER && addr < hw.NVICICER+8:
			d.enabled[(addr-hw.NVICICER)/4] &^= val
		case addr >= hw.NVICISPR && addr < hw.NVICISPR+8:
			d.pending[(addr-hw.NVICISPR)/4] |= val
			drain = true
		case addr >= hw.NVICICPR && addr < hw.NVICICPR+8:
			d.pending[(addr-hw.NVICICPR)/4] &^= val
		case addr >= hw.NVICIPR && addr < hw.NVICIPR+64:
			d.prio[(addr-hw.NVICIPR)/4] = val
		}
	}

	d.mu.Unlock()

	if drain {
		d.drain()
	}
}

// readRCCCR advances the oscillator ready flags. The real part takes a
// few cycles after the enable bit; the model takes a few reads.
func (d *Device) readRCCCR() uint32 {
	if d.rccCR&hw.RCCCRHSEON != 0 && d.rccCR&hw.RCCCRHSERDY == 0 && !d.cfg.StuckHSE {
		d.hseReads++
		if d.hseReads >= d.cfg.HSEReadyAfter {
			d.rccCR |= hw.RCCCRHSERDY
		}
	}

	if d.rccCR&hw.RCCCRPLLON != 0 && d.rccCR&hw.RCCCRPLLRDY == 0 && !d.cfg.StuckPLL {
		d.pllReads++
		if d.pllReads >= d.cfg.PLLReadyAfter {
			d.rccCR |= hw.RCCCRPLLRDY
		}
	}

	return d.rccCR
}

func (d *Device) writeRCCCR(val uint32) {
	const ready = hw.RCCCRHSERDY | hw.RCCCRPLLRDY

	was := d.rccCR
	d.rccCR = (val &^ uint32(ready)) | (was & ready)

	if val&hw.RCCCRHSEON != 0 && was&hw.RCCCRHSEON == 0 {
		d.hseReads = 0
	}

	if val&hw.RCCCRHSEON == 0 {
		d.rccCR &^= uint32(hw.RCCCRHSERDY)
		d.hseReads = 0
	}

	if val&hw.RCCCRPLLON != 0 && was&hw.RCCCRPLLON == 0 {
		d.pllReads = 0
	}

	if val&hw.RCCCRPLLON == 0 {
		d.rccCR &^= uint32(hw.RCCCRPLLRDY)
		d.pllReads = 0
	}
}

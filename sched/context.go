package sched

// Stack frame geometry. An exception pushes the caller-saved half
// (r0-r3, r12, lr, pc, xPSR) by itself; the scheduler spills the
// callee-saved block r4-r11 below it around every switch.
const (
	calleeBytes = 32
	frameBytes  = 64

	initialXPSR = 0x01000000
)

// buildFrame lays the initial 16-word frame at the top of a fresh
// stack: a zeroed callee block under a hardware frame whose PC is the
// entry point, so the first dispatch returns into the process as if it
// were resuming from an interrupt.
func (s *Scheduler) buildFrame(p *Process) {
	sp := p.StackBase + p.StackSize - frameBytes

	for off := uint32(0); off < frameBytes; off += 4 {
		s.mem.Write32(sp+off, 0)
	}

	// R0 carries the spawn parameter, PC the entry point; everything
	// else starts zeroed with just the Thumb bit in xPSR.
	s.mem.Write32(sp+calleeBytes, p.Param)
	s.mem.Write32(sp+calleeBytes+24, p.Entry)
	s.mem.Write32(sp+calleeBytes+28, initialXPSR)

	p.StackPtr = sp
}

// switchContext saves the outgoing context and restores the incoming
// one. from may be nil when the old process was just terminated.
func (s *Scheduler) switchContext(from, to *Process) {
	if from != nil {
		s.save(from)
	}

	s.restore(to)
}

// save spills r4-r11 onto the outgoing stack and records the stack
// pointer. The hardware already stacked the caller-saved frame above.
func (s *Scheduler) save(p *Process) {
	sp := s.core.StackPointer() - calleeBytes
	regs := s.core.CalleeSaved()

	for i, r := range regs {
		s.mem.Write32(sp+uint32(i)*4, r)
	}

	p.StackPtr = sp
}

// restore reloads r4-r11 from the incoming stack and leaves the stack
// pointer at the exception frame, ready for the hardware unstack.
func (s *Scheduler) restore(p *Process) {
	var regs [8]uint32

	for i := range regs {
		regs[i], _ = s.mem.Read32(p.StackPtr + uint32(i)*4)
	}

	s.core.SetCalleeSaved(regs)
	s.core.SetStackPointer(p.StackPtr + calleeBytes)
}

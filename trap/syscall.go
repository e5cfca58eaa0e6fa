package trap

import "github.com/Lnrchaos/tweakngeek-firmware/abi"

// SyscallFn handles one system call with the four argument registers.
type SyscallFn func(arg1, arg2, arg3, arg4 uint32) uint32

// Exception frame slots, in stacking order.
const (
	frameR0 = 0
	frameR1 = 4
	frameR2 = 8
	frameR3 = 12
	framePC = 24
)

func (d *Dispatcher) RegisterSyscall(num uint8, fn SyscallFn) abi.Status {
	if !d.initialized {
		return abi.StatusError
	}

	if num >= abi.SyscallMaxCount || fn == nil {
		return abi.StatusInvalidParam
	}

	pm := d.cpu.DisableInterrupts()
	d.syscalls[num] = fn
	d.cpu.RestoreInterrupts(pm)

	return abi.StatusOK
}

// InvokeSyscall dispatches directly, the path kernel code takes when it
// is already privileged. Out-of-range and unregistered numbers report
// BadSyscall instead of trapping.
func (d *Dispatcher) InvokeSyscall(num uint8, arg1, arg2, arg3, arg4 uint32) uint32 {
	if !d.initialized || num >= abi.SyscallMaxCount || d.syscalls[num] == nil {
		return abi.BadSyscall
	}

	d.stats.SystemCalls++

	return d.syscalls[num](arg1, arg2, arg3, arg4)
}

// SVCEntry is the supervisor-call exception body. The call number is
// the 8-bit immediate of the svc instruction itself, two bytes behind
// the return address in the frame; the result goes back into the
// frame's R0 slot, where the caller picks it up on exception return.
func (d *Dispatcher) SVCEntry(frame uint32) {
	if !d.initialized {
		return
	}

	d.nesting++
	d.stats.SystemCalls++

	d.mem.Write32(frame+frameR0, d.dispatchSVC(frame))

	d.nesting--
}

func (d *Dispatcher) dispatchSVC(frame uint32) uint32 {
	pc, err := d.mem.Read32(frame + framePC)
	if err != nil {
		return abi.BadSyscall
	}

	num, err := d.mem.Read8(pc - 2)
	if err != nil || num >= abi.SyscallMaxCount || d.syscalls[num] == nil {
		d.l.Warn("bad-syscall", "num", num)
		return abi.BadSyscall
	}

	r0, _ := d.mem.Read32(frame + frameR0)
	r1, _ := d.mem.Read32(frame + frameR1)
	r2, _ := d.mem.Read32(frame + frameR2)
	r3, _ := d.mem.Read32(frame + frameR3)

	return d.syscalls[num](r0, r1, r2, r3)
}

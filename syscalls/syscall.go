// Package syscalls holds the handlers servicing supervisor calls. Each
// handler lives in the file of its concern and registers itself into
// the table from init; the Invoker closes the table over a kernel and
// hands it to the trap dispatcher.
package syscalls

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
)

// SysArgs is one decoded trap: the service index and the argument
// registers the caller loaded before the trap instruction.
type SysArgs struct {
	Index uint8
	Args  Request
}

// Request is the caller's argument register block.
type Request struct {
	R0, R1, R2, R3 uint32
}

// System is the kernel surface the handlers run against.
type System interface {
	CreateProcess(entry, stackSize, prio, flags uint32) uint32
	TerminateProcess(id uint32) abi.Status
	Alloc(size, flags uint32) uint32
	Free(addr uint32)
	Yield()
	InfoSnapshot() (abi.SystemInfo, bool)
	WriteInfo(addr uint32, info abi.SystemInfo) abi.Status
}

// Syscalls is the handler table, indexed by service number.
var Syscalls [abi.SyscallMaxCount]func(hclog.Logger, System, SysArgs) uint32

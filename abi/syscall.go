package abi

// Syscall numbers. The supervisor call instruction carries one of these
// as its 8-bit immediate.
const (
	SysProcessCreate    = 0
	SysProcessTerminate = 1
	SysMemoryAlloc      = 2
	SysMemoryFree       = 3
	SysSchedulerYield   = 4
	SysGetSystemInfo    = 5

	SyscallMaxCount = 6
)

// BadSyscall is returned for out-of-range or unregistered syscall numbers.
const BadSyscall uint32 = 0xFFFFFFFF

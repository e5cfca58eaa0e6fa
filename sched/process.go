package sched

// ProcessState is the lifecycle state of a process. Only Ready and
// Running are driven by the scheduler itself; Blocked waits on a
// transition producer outside this core.
type ProcessState int

const (
	StateReady ProcessState = iota
	StateRunning
	StateBlocked
	StateSuspended
	StateTerminated
)

func (s ProcessState) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateSuspended:
		return "suspended"
	case StateTerminated:
		return "terminated"
	}

	return "unknown"
}

type Priority int

const (
	PriorityIdle Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityIdle:
		return "idle"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}

	return "unknown"
}

const (
	// MaxProcesses bounds the arena. Slot 0 is always the idle process.
	MaxProcesses = 16

	// MaxNameLen is the longest name a process record keeps.
	MaxNameLen = 31

	// MinStackSize is the smallest stack Create accepts.
	MinStackSize = 512

	// DefaultTimeSlice is how many ticks a process runs before the
	// scheduler looks for someone else.
	DefaultTimeSlice = 10
)

// RetiredProcess is the post-mortem record kept once Terminate has
// returned a process's storage to the heap. A bounded number of these
// survive for the monitor's process view.
type RetiredProcess struct {
	ID       uint32
	Name     string
	Priority Priority

	// Runtime is the total ticks the process ran; EndedAt is the
	// scheduler tick on which it was terminated.
	Runtime uint32
	EndedAt uint32
}

// Process is the per-process bookkeeping record. Records live in the
// scheduler's arena and are linked by slot index, never by pointer;
// the heap storage behind StackBase and recAddr is owned exclusively
// by the process and returned to the manager on terminate.
type Process struct {
	ID       uint32
	Name     string
	State    ProcessState
	Priority Priority

	// StackPtr is the saved stack pointer: it points at the callee
	// block, with the exception frame 32 bytes above it.
	StackPtr  uint32
	StackBase uint32
	StackSize uint32

	TimeSlice     uint32
	TimeRemaining uint32
	TotalRuntime  uint32
	LastScheduled uint32

	Entry uint32
	Param uint32
	Flags uint32

	// recAddr is the heap block backing this record.
	recAddr uint32

	used bool
	next int
	prev int
}

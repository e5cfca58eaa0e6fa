package abi

// Status is the kernel-wide result code. Negative values are errors.
type Status int32

const (
	StatusOK           Status = 0
	StatusError        Status = -1
	StatusInvalidParam Status = -2
	StatusNoMemory     Status = -3
	StatusTimeout      Status = -4
	StatusBusy         Status = -5
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusInvalidParam:
		return "invalid-param"
	case StatusNoMemory:
		return "out-of-memory"
	case StatusTimeout:
		return "timeout"
	case StatusBusy:
		return "busy"
	}

	return "unknown"
}

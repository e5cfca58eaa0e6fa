package kernel

import (
	"github.com/Lnrchaos/tweakngeek-firmware/abi"
)

// SystemInfo assembles a point-in-time snapshot under a critical
// section so the counters are consistent with each other.
func (k *Kernel) SystemInfo() abi.SystemInfo {
	k.EnterCritical()
	defer k.ExitCritical()

	info := abi.SystemInfo{
		BootTimeMS:  k.bootTimeMS,
		UptimeMS:    k.UptimeMS(),
		State:       uint32(k.state),
		BootStage:   uint32(k.seq.Stage()),
		FreeMemory:  k.mgr.Stats().Free,
		TotalMemory: k.mem.Size(),
	}

	if st := k.sched.Stats(); st.SchedulerTicks > 0 {
		info.CPUUsagePercent = uint8(100 - st.IdleTimePercent)
	}

	return info
}

// InfoSnapshot is the trap-facing form: before the kernel leaves boot
// there is nothing coherent to copy out.
func (k *Kernel) InfoSnapshot() (abi.SystemInfo, bool) {
	if k.state == StateBoot {
		return abi.SystemInfo{}, false
	}

	return k.SystemInfo(), true
}

// WriteInfo copies an encoded snapshot into caller-owned RAM.
func (k *Kernel) WriteInfo(addr uint32, info abi.SystemInfo) abi.Status {
	if !k.mem.Contains(addr, abi.SystemInfoSize) {
		return abi.StatusInvalidParam
	}

	var buf [abi.SystemInfoSize]byte
	info.EncodeTo(buf[:])

	if _, err := k.mem.WriteAt(buf[:], int64(addr)); err != nil {
		return abi.StatusError
	}

	return abi.StatusOK
}

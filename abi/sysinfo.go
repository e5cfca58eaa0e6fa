package abi

import "encoding/binary"

// SystemInfoSize is the encoded size of a SystemInfo snapshot, including
// the trailing pad that keeps the layout 4-byte aligned.
const SystemInfoSize = 28

// SystemInfo is the snapshot handed to user code by the get-system-info
// syscall. State and BootStage carry the raw enum values so the layout
// stays independent of the kernel packages.
type SystemInfo struct {
	BootTimeMS      uint32
	UptimeMS        uint32
	State           uint32
	BootStage       uint32
	FreeMemory      uint32
	TotalMemory     uint32
	CPUUsagePercent uint8
}

// EncodeTo writes the little-endian snapshot layout. buf must hold at
// least SystemInfoSize bytes.
func (si *SystemInfo) EncodeTo(buf []byte) {
	le := binary.LittleEndian

	le.PutUint32(buf[0:], si.BootTimeMS)
	le.PutUint32(buf[4:], si.UptimeMS)
	le.PutUint32(buf[8:], si.State)
	le.PutUint32(buf[12:], si.BootStage)
	le.PutUint32(buf[16:], si.FreeMemory)
	le.PutUint32(buf[20:], si.TotalMemory)
	buf[24] = si.CPUUsagePercent
	buf[25] = 0
	buf[26] = 0
	buf[27] = 0
}

func DecodeSystemInfo(buf []byte) SystemInfo {
	le := binary.LittleEndian

	return SystemInfo{
		BootTimeMS:      le.Uint32(buf[0:]),
		UptimeMS:        le.Uint32(buf[4:]),
		State:           le.Uint32(buf[8:]),
		BootStage:       le.Uint32(buf[12:]),
		FreeMemory:      le.Uint32(buf[16:]),
		TotalMemory:     le.Uint32(buf[20:]),
		CPUUsagePercent: buf[24],
	}
}

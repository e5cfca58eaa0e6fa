package syscalls

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
)

func sysGetSystemInfo(l hclog.Logger, sys System, args SysArgs) uint32 {
	var (
		buffer = args.Args.R0
		size   = args.Args.R1
	)

	if buffer == 0 || size < abi.SystemInfoSize {
		return 1
	}

	info, ok := sys.InfoSnapshot()
	if !ok {
		return 2
	}

	if st := sys.WriteInfo(buffer, info); st != abi.StatusOK {
		return 1
	}

	return 0
}

func init() {
	Syscalls[abi.SysGetSystemInfo] = sysGetSystemInfo
}

package syscalls

import (
	hclog "github.com/hashicorp/go-hclog"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
)

func sysSchedulerYield(l hclog.Logger, sys System, args SysArgs) uint32 {
	sys.Yield()

	return 0
}

func init() {
	Syscalls[abi.SysSchedulerYield] = sysSchedulerYield
}

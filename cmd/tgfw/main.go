package main

import (
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/hw/wb55"
	"github.com/Lnrchaos/tweakngeek-firmware/kernel"
	tlog "github.com/Lnrchaos/tweakngeek-firmware/log"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
	"github.com/Lnrchaos/tweakngeek-firmware/sched"
)

const (
	ramBase   = 0x20000000
	flashBase = 0x08000400
)

var (
	fRAM   = pflag.Uint32P("ram", "m", memory.DefaultRAMSize, "bytes of ram to simulate")
	fTicks = pflag.IntP("ticks", "t", 1000, "timer ticks to run before the report")
	fProcs = pflag.IntP("procs", "p", 2, "demo processes to spawn")
	fTrace = pflag.BoolP("trace", "v", false, "enable trace logging")
)

func main() {
	pflag.Parse()

	tlog.EnableDebug(*fTrace)

	mem := memory.NewPhysical(ramBase, *fRAM)
	dev := wb55.New(mem, wb55.Config{})

	k := kernel.New(dev, mem, tlog.L)

	if st := k.Init(); st != abi.StatusOK {
		bootTrail(os.Stderr, k)
		log.Fatalf("kernel init failed at %s: %s", k.FailedStage(), st)
	}

	if st := k.Start(); st != abi.StatusOK {
		log.Fatalf("kernel start failed: %s", st)
	}

	for i := 0; i < *fProcs; i++ {
		entry := uint32(flashBase + i*0x100)

		pid := dev.SVCall(abi.SysProcessCreate, entry, 1024, uint32(sched.PriorityNormal), abi.ProcUser)
		if pid == 0 {
			log.Fatalf("spawn %d failed", i)
		}
	}

	k.RunTicks(*fTicks)

	report(os.Stdout, k, dev)

	k.Shutdown()
}

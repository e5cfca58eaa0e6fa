package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Lnrchaos/tweakngeek-firmware/hw/wb55"
	"github.com/Lnrchaos/tweakngeek-firmware/kernel"
)

func bootTrail(w io.Writer, k *kernel.Kernel) {
	fmt.Fprintf(w, "\n[boot]\n")

	tr := tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)

	for _, rec := range k.Boot().Records() {
		if rec.Err != nil {
			fmt.Fprintf(tr, "%s\t%s\tattempts=%d\t%v\n", rec.Stage, rec.Status, rec.Attempts, rec.Err)
		} else {
			fmt.Fprintf(tr, "%s\t%s\tattempts=%d\t\n", rec.Stage, rec.Status, rec.Attempts)
		}
	}

	tr.Flush()
}

func report(w io.Writer, k *kernel.Kernel, dev *wb55.Device) {
	bootTrail(w, k)

	fmt.Fprintf(w, "\n[processes]\n")

	tr := tabwriter.NewWriter(w, 4, 8, 1, ' ', 0)
	fmt.Fprintf(tr, "id\tname\tstate\tprio\truntime\n")

	for _, p := range k.Scheduler().Snapshot() {
		fmt.Fprintf(tr, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.State, p.Priority, p.TotalRuntime)
	}

	tr.Flush()

	st := k.Scheduler().Stats()
	fmt.Fprintf(w, "switches=%d ticks=%d idle=%d%%\n", st.ContextSwitches, st.SchedulerTicks, st.IdleTimePercent)

	ms := k.Memory().Stats()
	fmt.Fprintf(w, "\n[memory]\nused=%d free=%d largest=%d allocs=%d frag=%d%%\n",
		ms.Used, ms.Free, ms.LargestFree, ms.Allocations, ms.FragmentationPercent)

	ts := k.Dispatcher().Stats()
	fmt.Fprintf(w, "\n[traps]\ninterrupts=%d syscalls=%d max-nesting=%d\n",
		ts.TotalInterrupts, ts.SystemCalls, ts.MaxNestingLevel)

	info := k.SystemInfo()
	fmt.Fprintf(w, "\n[system]\nstate=%s uptime=%dms boot=%dms cpu=%d%% free=%d/%d idle-waits=%d\n",
		k.State(), info.UptimeMS, info.BootTimeMS, info.CPUUsagePercent,
		info.FreeMemory, info.TotalMemory, dev.IdleWaits())
}

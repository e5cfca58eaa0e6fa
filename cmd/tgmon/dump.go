package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
)

func (m *monitor) processes() {
	tr := tabwriter.NewWriter(os.Stdout, 4, 8, 1, ' ', 0)

	fmt.Fprintf(tr, "id\tname\tstate\tprio\truntime\tstack\n")

	for _, p := range m.k.Scheduler().Snapshot() {
		fmt.Fprintf(tr, "%d\t%s\t%s\t%s\t%d\t%08x+%d\n",
			p.ID, p.Name, p.State, p.Priority, p.TotalRuntime, p.StackBase, p.StackSize)
	}

	tr.Flush()

	if retired := m.k.Scheduler().Retired(); len(retired) > 0 {
		fmt.Printf("\n[retired]\n")

		tr = tabwriter.NewWriter(os.Stdout, 4, 8, 1, ' ', 0)
		fmt.Fprintf(tr, "id\tname\tprio\truntime\tended\n")

		for _, r := range retired {
			fmt.Fprintf(tr, "%d\t%s\t%s\t%d\t%d\n", r.ID, r.Name, r.Priority, r.Runtime, r.EndedAt)
		}

		tr.Flush()
	}

	st := m.k.Scheduler().Stats()
	fmt.Printf("switches=%d ticks=%d idle=%d%%\n", st.ContextSwitches, st.SchedulerTicks, st.IdleTimePercent)
}

func (m *monitor) memoryStats() {
	st := m.k.Memory().Stats()

	fmt.Printf("used=%d free=%d largest=%d allocs=%d free-blocks=%d frag=%d%% intact=%v\n",
		st.Used, st.Free, st.LargestFree, st.Allocations, st.FreeBlocks,
		st.FragmentationPercent, m.k.Memory().Validate())

	tr := tabwriter.NewWriter(os.Stdout, 4, 8, 1, ' ', 0)

	fmt.Fprintf(tr, "region\tstart\tsize\tprot\n")

	for i, reg := range m.k.Memory().Regions() {
		fmt.Fprintf(tr, "%d\t%08x\t%d\t%05b\n", i, reg.Start, reg.Size, reg.Protection)
	}

	tr.Flush()
}

func (m *monitor) bootTrail() {
	tr := tabwriter.NewWriter(os.Stdout, 4, 8, 1, ' ', 0)

	for _, rec := range m.k.Boot().Records() {
		if rec.Err != nil {
			fmt.Fprintf(tr, "%s\t%s\tattempts=%d\t%v\n", rec.Stage, rec.Status, rec.Attempts, rec.Err)
		} else {
			fmt.Fprintf(tr, "%s\t%s\tattempts=%d\t\n", rec.Stage, rec.Status, rec.Attempts)
		}
	}

	tr.Flush()
}

func (m *monitor) sysinfo() {
	if ret := m.dev.SVCall(abi.SysGetSystemInfo, m.infoBuf, abi.SystemInfoSize, 0, 0); ret != 0 {
		fmt.Printf("sysinfo trap failed: %d\n", ret)
		return
	}

	var buf [abi.SystemInfoSize]byte

	if _, err := m.mem.ReadAt(buf[:], int64(m.infoBuf)); err != nil {
		fmt.Printf("readback failed: %v\n", err)
		return
	}

	spew.Dump(abi.DecodeSystemInfo(buf[:]))
}

func (m *monitor) interrupts() {
	tr := tabwriter.NewWriter(os.Stdout, 4, 8, 1, ' ', 0)

	fmt.Fprintf(tr, "irq\tname\tprio\tcount\n")

	for _, d := range m.k.Dispatcher().Descriptors() {
		if !d.Enabled && d.Count == 0 {
			continue
		}

		fmt.Fprintf(tr, "%d\t%s\t%d\t%d\n", d.IRQ, d.Name, d.Priority, d.Count)
	}

	tr.Flush()

	ts := m.k.Dispatcher().Stats()
	fmt.Printf("interrupts=%d syscalls=%d nested=%d max-nesting=%d\n",
		ts.TotalInterrupts, ts.SystemCalls, ts.NestedInterrupts, ts.MaxNestingLevel)
}

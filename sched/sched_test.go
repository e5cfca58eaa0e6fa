package sched

import (
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/hw/wb55"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
)

const entryAddr = 0x08000400

func newTestSched(t *testing.T) (*Scheduler, *memory.Manager, *wb55.Device) {
	mem := memory.NewPhysical(0x20000000, 256*1024)
	dev := wb55.New(mem, wb55.Config{})

	mgr := memory.NewManager(mem, dev, hclog.NewNullLogger())

	heapBase := mem.Base() + 0x1000
	require.Equal(t, abi.StatusOK, mgr.Init(heapBase, memory.HeapSize))

	s := New(mem, mgr, dev, hclog.NewNullLogger())
	require.Equal(t, abi.StatusOK, s.Init(heapBase+memory.HeapSize, 1024))

	return s, mgr, dev
}

func TestInit(t *testing.T) {
	n := neko.Modern(t)

	n.It("constructs the idle process and makes it current", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		cur := s.Current()
		require.NotNil(t, cur)
		require.Equal(t, uint32(0), cur.ID)
		require.Equal(t, "idle", cur.Name)
		require.Equal(t, PriorityIdle, cur.Priority)
		require.Equal(t, uint32(abi.ProcSystem), cur.Flags)

		require.Len(t, s.Snapshot(), 1)
	})

	n.It("rejects an idle stack outside physical memory", func(t *testing.T) {
		mem := memory.NewPhysical(0x20000000, 64*1024)
		dev := wb55.New(mem, wb55.Config{})
		mgr := memory.NewManager(mem, dev, hclog.NewNullLogger())

		s := New(mem, mgr, dev, hclog.NewNullLogger())
		require.Equal(t, abi.StatusInvalidParam, s.Init(0x30000000, 1024))
	})

	n.It("marks the idle process running on start", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		require.Equal(t, StateReady, s.Current().State)

		s.Start()
		require.Equal(t, StateRunning, s.Current().State)
		require.True(t, s.Running())
	})

	n.Meow()
}

func TestCreate(t *testing.T) {
	n := neko.Modern(t)

	n.It("rejects bad parameters", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		require.Zero(t, s.Create("", entryAddr, 1024, PriorityNormal, 0))
		require.Zero(t, s.Create("p", 0, 1024, PriorityNormal, 0))
		require.Zero(t, s.Create("p", entryAddr, MinStackSize-1, PriorityNormal, 0))
		require.Zero(t, s.Create("p", entryAddr, 1024, PriorityCritical+1, 0))
	})

	n.It("assigns sequential ids and inserts at the head", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		a := s.Create("a", entryAddr, 1024, PriorityNormal, 0)
		b := s.Create("b", entryAddr, 1024, PriorityNormal, 0)

		require.Equal(t, uint32(1), a)
		require.Equal(t, uint32(2), b)

		procs := s.Snapshot()
		require.Equal(t, "b", procs[0].Name)
		require.Equal(t, "a", procs[1].Name)
		require.Equal(t, "idle", procs[2].Name)
	})

	n.It("zero-fills the stack and builds the entry frame", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		id := s.Create("frame", entryAddr, 1024, PriorityNormal, 0)
		p := s.ByID(id)
		require.NotNil(t, p)

		require.Equal(t, p.StackBase+p.StackSize-frameBytes, p.StackPtr)

		pc, err := s.mem.Read32(p.StackPtr + calleeBytes + 24)
		require.NoError(t, err)
		require.Equal(t, uint32(entryAddr), pc)

		xpsr, err := s.mem.Read32(p.StackPtr + calleeBytes + 28)
		require.NoError(t, err)
		require.Equal(t, uint32(initialXPSR), xpsr)
	})

	n.It("seeds the parameter into the frame R0 slot", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		id := s.CreateWithParam("arg", entryAddr, 1024, PriorityNormal, 0, 0xCAFE)
		p := s.ByID(id)

		r0, err := s.mem.Read32(p.StackPtr + calleeBytes)
		require.NoError(t, err)
		require.Equal(t, uint32(0xCAFE), r0)
		require.Equal(t, uint32(0xCAFE), p.Param)
	})

	n.It("truncates long names", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		long := "a-process-name-well-past-the-record-limit"
		id := s.Create(long, entryAddr, 1024, PriorityNormal, 0)

		require.Equal(t, long[:MaxNameLen], s.ByID(id).Name)
	})

	n.It("parks a process created suspended", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("parked", entryAddr, 1024, PriorityCritical, abi.ProcSuspended)
		require.Equal(t, StateSuspended, s.ByID(id).State)

		for i := 0; i < 50; i++ {
			s.Tick()
		}

		require.Equal(t, uint32(0), s.Current().ID)
	})

	n.It("fails once the arena is full", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		for i := 1; i < MaxProcesses; i++ {
			require.NotZero(t, s.Create("p", entryAddr, MinStackSize, PriorityNormal, 0))
		}

		require.Zero(t, s.Create("overflow", entryAddr, MinStackSize, PriorityNormal, 0))
	})

	n.It("rolls the record back when the stack allocation fails", func(t *testing.T) {
		s, mgr, _ := newTestSched(t)

		filler := mgr.Alloc(mgr.Stats().LargestFree-512, 0)
		require.NotZero(t, filler)

		before := mgr.Stats().Free
		require.Zero(t, s.Create("big", entryAddr, 4096, PriorityNormal, 0))
		require.Equal(t, before, mgr.Stats().Free)
	})

	n.Meow()
}

func TestPreempt(t *testing.T) {
	n := neko.Modern(t)

	n.It("dispatches the highest-priority ready process", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		s.Create("low", entryAddr, 1024, PriorityLow, 0)
		s.Create("normal", entryAddr, 1024, PriorityNormal, 0)
		s.Create("high", entryAddr, 1024, PriorityHigh, 0)
		crit := s.Create("crit", entryAddr, 1024, PriorityCritical, 0)

		s.Preempt()

		cur := s.Current()
		require.Equal(t, crit, cur.ID)
		require.Equal(t, StateRunning, cur.State)

		require.Equal(t, StateReady, s.ByID(0).State)
	})

	n.It("breaks priority ties toward the most recently created", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		s.Create("older", entryAddr, 1024, PriorityNormal, 0)
		newer := s.Create("newer", entryAddr, 1024, PriorityNormal, 0)

		s.Preempt()

		require.Equal(t, newer, s.Current().ID)
	})

	n.It("keeps exactly one process running", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		s.Create("a", entryAddr, 1024, PriorityNormal, 0)
		s.Create("b", entryAddr, 1024, PriorityHigh, 0)

		for i := 0; i < 35; i++ {
			s.Tick()

			running := 0
			for _, p := range s.Snapshot() {
				if p.State == StateRunning {
					running++
				}
			}

			require.Equal(t, 1, running)
		}
	})

	n.It("resets the slice without switching when nothing else is ready", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		before := s.Stats().ContextSwitches

		for i := 0; i < int(DefaultTimeSlice); i++ {
			s.Tick()
		}

		require.Equal(t, uint32(0), s.Current().ID)
		require.Equal(t, before, s.Stats().ContextSwitches)
		require.Equal(t, uint32(DefaultTimeSlice), s.Current().TimeRemaining)
	})

	n.Meow()
}

func TestTick(t *testing.T) {
	n := neko.Modern(t)

	n.It("preempts on exactly the last tick of the quantum", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("worker", entryAddr, 1024, PriorityHigh, 0)

		s.Preempt()
		require.Equal(t, id, s.Current().ID)

		for i := 0; i < int(DefaultTimeSlice)-1; i++ {
			s.Tick()
			require.Equal(t, id, s.Current().ID, "tick %d", i+1)
		}

		s.Tick()
		require.NotEqual(t, id, s.Current().ID)
		require.Equal(t, StateReady, s.ByID(id).State)
	})

	n.It("does nothing before start or while locked", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		s.Tick()
		require.Zero(t, s.Stats().SchedulerTicks)

		s.Start()
		s.Lock()
		require.True(t, s.IsLocked())

		for i := 0; i < 20; i++ {
			s.Tick()
		}

		require.Zero(t, s.Stats().SchedulerTicks)
		require.Equal(t, uint32(0), s.Current().ID)

		s.Unlock()
		s.Tick()
		require.Equal(t, uint32(1), s.Stats().SchedulerTicks)
	})

	n.It("applies time accounting before the preemption decision", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("acct", entryAddr, 1024, PriorityHigh, 0)
		s.Preempt()

		s.Tick()

		p := s.ByID(id)
		require.Equal(t, uint32(DefaultTimeSlice-1), p.TimeRemaining)
		require.Equal(t, uint32(1), p.TotalRuntime)
	})

	n.Meow()
}

func TestYield(t *testing.T) {
	n := neko.Modern(t)

	n.It("forces the quantum to zero and switches synchronously", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("worker", entryAddr, 1024, PriorityHigh, 0)
		s.Preempt()
		require.Equal(t, id, s.Current().ID)

		switches := s.Stats().ContextSwitches

		s.Yield()

		require.NotEqual(t, id, s.Current().ID)
		require.Equal(t, switches+1, s.Stats().ContextSwitches)
	})

	n.It("is a no-op before start", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		s.Yield()
		require.Zero(t, s.Stats().ContextSwitches)
	})

	n.Meow()
}

func TestTerminate(t *testing.T) {
	n := neko.Modern(t)

	n.It("never removes the idle process", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		require.Equal(t, abi.StatusInvalidParam, s.Terminate(0))

		require.NotNil(t, s.ByID(0))
		require.Len(t, s.Snapshot(), 1)
	})

	n.It("rejects unknown ids", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		require.Equal(t, abi.StatusInvalidParam, s.Terminate(42))
	})

	n.It("returns stack and record storage to the heap", func(t *testing.T) {
		s, mgr, _ := newTestSched(t)
		s.Start()

		baseline := mgr.Stats().Free

		id := s.Create("doomed", entryAddr, 1024, PriorityNormal, 0)
		require.Less(t, mgr.Stats().Free, baseline)

		require.Equal(t, abi.StatusOK, s.Terminate(id))
		require.Equal(t, baseline, mgr.Stats().Free)
		require.Nil(t, s.ByID(id))
	})

	n.It("preempts immediately when the current process dies", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("doomed", entryAddr, 1024, PriorityCritical, 0)
		s.Preempt()
		require.Equal(t, id, s.Current().ID)

		require.Equal(t, abi.StatusOK, s.Terminate(id))

		cur := s.Current()
		require.NotNil(t, cur)
		require.Equal(t, uint32(0), cur.ID)
		require.Equal(t, StateRunning, cur.State)
	})

	n.Meow()
}

func TestRetired(t *testing.T) {
	n := neko.Modern(t)

	n.It("keeps a post-mortem record once the storage is gone", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("ephemeral", entryAddr, 1024, PriorityHigh, 0)
		s.Preempt()

		for i := 0; i < 4; i++ {
			s.Tick()
		}

		require.Equal(t, abi.StatusOK, s.Terminate(id))
		require.Nil(t, s.ByID(id))

		retired := s.Retired()
		require.Len(t, retired, 1)
		require.Equal(t, id, retired[0].ID)
		require.Equal(t, "ephemeral", retired[0].Name)
		require.Equal(t, PriorityHigh, retired[0].Priority)
		require.Equal(t, uint32(4), retired[0].Runtime)
		require.Equal(t, uint32(4), retired[0].EndedAt)
	})

	n.It("orders the view most recent death first", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		a := s.Create("first", entryAddr, 1024, PriorityNormal, 0)
		b := s.Create("second", entryAddr, 1024, PriorityNormal, 0)

		require.Equal(t, abi.StatusOK, s.Terminate(a))
		s.Tick()
		require.Equal(t, abi.StatusOK, s.Terminate(b))

		retired := s.Retired()
		require.Len(t, retired, 2)
		require.Equal(t, b, retired[0].ID)
		require.Equal(t, a, retired[1].ID)
	})

	n.It("bounds the history and keeps the newest entries", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		var last uint32

		for i := 0; i < retiredHistory+8; i++ {
			last = s.Create("churn", entryAddr, MinStackSize, PriorityNormal, 0)
			require.NotZero(t, last)
			require.Equal(t, abi.StatusOK, s.Terminate(last))
		}

		retired := s.Retired()
		require.Len(t, retired, retiredHistory)
		require.Equal(t, last, retired[0].ID)
	})

	n.It("clears the history on re-init", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("gone", entryAddr, 1024, PriorityNormal, 0)
		require.Equal(t, abi.StatusOK, s.Terminate(id))
		require.Len(t, s.Retired(), 1)

		require.Equal(t, abi.StatusOK, s.Init(s.mem.Base()+0x1000+memory.HeapSize, 1024))
		require.Empty(t, s.Retired())
	})

	n.Meow()
}

func TestSuspendResume(t *testing.T) {
	n := neko.Modern(t)

	n.It("parks a ready process until resumed", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("nap", entryAddr, 1024, PriorityCritical, 0)

		require.Equal(t, abi.StatusOK, s.Suspend(id))
		require.Equal(t, StateSuspended, s.ByID(id).State)

		for i := 0; i < 30; i++ {
			s.Tick()
			require.NotEqual(t, id, s.Current().ID)
		}

		require.Equal(t, abi.StatusOK, s.Resume(id))
		s.Preempt()
		require.Equal(t, id, s.Current().ID)
	})

	n.It("refuses the current process and the idle process", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		id := s.Create("busy", entryAddr, 1024, PriorityCritical, 0)
		s.Preempt()

		require.Equal(t, abi.StatusInvalidParam, s.Suspend(id))
		require.Equal(t, abi.StatusInvalidParam, s.Suspend(0))
	})

	n.It("only resumes suspended processes", func(t *testing.T) {
		s, _, _ := newTestSched(t)

		id := s.Create("ready", entryAddr, 1024, PriorityNormal, 0)

		require.Equal(t, abi.StatusInvalidParam, s.Resume(id))
		require.Equal(t, abi.StatusInvalidParam, s.Resume(99))
	})

	n.Meow()
}

func TestContextSwitch(t *testing.T) {
	n := neko.Modern(t)

	n.It("spills and reloads the callee-saved block across switches", func(t *testing.T) {
		s, _, dev := newTestSched(t)
		s.Start()

		id := s.Create("regs", entryAddr, 1024, PriorityHigh, 0)
		s.Preempt()
		require.Equal(t, id, s.Current().ID)

		want := [8]uint32{0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB}
		dev.SetCalleeSaved(want)

		s.Yield()
		require.Equal(t, uint32(0), s.Current().ID)

		p := s.ByID(id)
		for i, r := range want {
			got, err := s.mem.Read32(p.StackPtr + uint32(i)*4)
			require.NoError(t, err)
			require.Equal(t, r, got, "r%d", i+4)
		}

		s.Yield()
		require.Equal(t, id, s.Current().ID)
		require.Equal(t, want, dev.CalleeSaved())
	})

	n.It("leaves the stack pointer at the exception frame", func(t *testing.T) {
		s, _, dev := newTestSched(t)
		s.Start()

		id := s.Create("sp", entryAddr, 1024, PriorityHigh, 0)
		s.Preempt()

		p := s.ByID(id)
		require.Equal(t, p.StackPtr+calleeBytes, dev.StackPointer())
	})

	n.Meow()
}

func TestStats(t *testing.T) {
	n := neko.Modern(t)

	n.It("tracks process counts and switches", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		a := s.Create("a", entryAddr, 1024, PriorityNormal, 0)
		s.Create("b", entryAddr, 1024, PriorityNormal, 0)

		st := s.Stats()
		require.Equal(t, uint32(2), st.TotalProcesses)
		require.Equal(t, uint32(2), st.ActiveProcesses)

		s.Preempt()
		require.Equal(t, uint32(1), s.Stats().ContextSwitches)

		s.Terminate(a)
		require.Equal(t, uint32(1), s.Stats().ActiveProcesses)
		require.Equal(t, uint32(2), s.Stats().TotalProcesses)
	})

	n.It("reports full idle time when only idle runs", func(t *testing.T) {
		s, _, _ := newTestSched(t)
		s.Start()

		for i := 0; i < 25; i++ {
			s.Tick()
		}

		require.Equal(t, uint32(100), s.Stats().IdleTimePercent)
	})

	n.Meow()
}

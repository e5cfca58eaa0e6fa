// Package sched is the preemptive process scheduler: a fixed arena of
// process records, tick-driven time slicing and a priority-based
// preemption policy. Equal priorities resolve to the most recently
// created process; the ready list is newest-first and selection takes
// the first maximum it meets.
package sched

import (
	"sort"

	hclog "github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/hw"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
)

const (
	idleID = 0

	// recordBytes is the heap footprint reserved per process record,
	// sized to the packed PCB layout (identity, context, accounting).
	recordBytes = 168

	// retiredHistory bounds the post-mortem cache of terminated
	// process records.
	retiredHistory = 32

	none = -1
)

type Stats struct {
	TotalProcesses  uint32
	ActiveProcesses uint32
	ContextSwitches uint32
	SchedulerTicks  uint32
	IdleTimePercent uint32
}

// Scheduler owns the process arena and the running/ready bookkeeping.
// It allocates stacks and record storage from the memory manager and
// swaps register context through the core interface.
type Scheduler struct {
	mem  *memory.Physical
	mgr  *memory.Manager
	core hw.Core
	l    hclog.Logger

	procs   [MaxProcesses]Process
	head    int
	current int

	running bool
	locked  bool
	nextID  uint32

	retired *lru.ARCCache

	stats Stats
}

func New(mem *memory.Physical, mgr *memory.Manager, core hw.Core, l hclog.Logger) *Scheduler {
	retired, err := lru.NewARC(retiredHistory)
	if err != nil {
		panic(err)
	}

	return &Scheduler{
		mem:     mem,
		mgr:     mgr,
		core:    core,
		l:       l,
		retired: retired,
	}
}

// Init resets the arena and statistics and constructs the idle process
// on its dedicated stack. The idle process is slot 0, id 0, and is
// never removed, so the set of ready processes is never empty.
func (s *Scheduler) Init(idleStackBase, idleStackSize uint32) abi.Status {
	if idleStackSize < MinStackSize || !s.mem.Contains(idleStackBase, idleStackSize) {
		return abi.StatusInvalidParam
	}

	for i := range s.procs {
		s.procs[i] = Process{next: none, prev: none}
	}

	s.head = none
	s.current = none
	s.running = false
	s.locked = false
	s.nextID = 1
	s.stats = Stats{}
	s.retired.Purge()

	idle := &s.procs[0]

	*idle = Process{
		ID:            idleID,
		Name:          "idle",
		State:         StateReady,
		Priority:      PriorityIdle,
		StackBase:     idleStackBase,
		StackSize:     idleStackSize,
		TimeSlice:     DefaultTimeSlice,
		TimeRemaining: DefaultTimeSlice,
		Flags:         abi.ProcSystem,
		used:          true,
		next:          none,
		prev:          none,
	}

	s.buildFrame(idle)
	s.pushFront(0)

	s.current = 0

	s.l.Debug("scheduler-init", "idle-stack", idleStackBase, "size", idleStackSize)

	return abi.StatusOK
}

// Start marks the scheduler running and dispatches the idle process.
func (s *Scheduler) Start() {
	s.running = true
	s.stats.SchedulerTicks = 0

	s.current = 0
	s.procs[0].State = StateRunning

	s.restore(&s.procs[0])

	s.l.Info("scheduler-start")
}

// Tick is the per-hardware-tick entry. Time accounting for the current
// process always happens before the preemption decision.
func (s *Scheduler) Tick() {
	if !s.running || s.locked {
		return
	}

	s.stats.SchedulerTicks++

	if s.current != none {
		cur := &s.procs[s.current]

		if cur.TimeRemaining > 0 {
			cur.TimeRemaining--
			cur.TotalRuntime++
		}

		if cur.TimeRemaining == 0 {
			s.Preempt()
		}
	}
}

// Preempt dispatches the highest-priority ready process. When the
// winner is already current only its time slice is reset; otherwise the
// old process goes back to ready and the contexts are swapped.
func (s *Scheduler) Preempt() {
	if !s.running || s.locked {
		return
	}

	next := s.nextReady()

	if next == none || next == s.current {
		if s.current != none {
			cur := &s.procs[s.current]
			cur.TimeRemaining = cur.TimeSlice
		}

		return
	}

	var from *Process

	if s.current != none {
		from = &s.procs[s.current]

		if from.State == StateRunning {
			from.State = StateReady
		}
	}

	to := &s.procs[next]

	s.current = next
	to.State = StateRunning
	to.TimeRemaining = to.TimeSlice
	to.LastScheduled = s.stats.SchedulerTicks

	s.stats.ContextSwitches++

	s.l.Trace("context-switch", "from", fromID(from), "to", to.ID)

	s.switchContext(from, to)
}

// Yield gives up the rest of the current quantum. The switch happens
// synchronously inside the call.
func (s *Scheduler) Yield() {
	if !s.running {
		return
	}

	if s.current != none {
		s.procs[s.current].TimeRemaining = 0
	}

	s.Preempt()
}

// Lock defers preemption decisions. It does not mask interrupts; ticks
// keep arriving and are simply not acted on.
func (s *Scheduler) Lock() {
	s.locked = true
}

func (s *Scheduler) Unlock() {
	s.locked = false
}

func (s *Scheduler) IsLocked() bool {
	return s.locked
}

// Create allocates a record and a zero-filled stack, builds the initial
// exception frame so the first dispatch returns into entry, and inserts
// the process at the head of the list. Returns the new id, or 0 on bad
// parameters or allocation failure.
func (s *Scheduler) Create(name string, entry, stackSize uint32, prio Priority, flags uint32) uint32 {
	if name == "" || entry == 0 || stackSize < MinStackSize {
		return 0
	}

	if prio < PriorityIdle || prio > PriorityCritical {
		return 0
	}

	slot := s.freeSlot()
	if slot == none {
		s.l.Warn("process-table-full", "name", name)
		return 0
	}

	rec := s.mgr.Alloc(recordBytes, 0)
	if rec == 0 {
		return 0
	}

	stack := s.mgr.Alloc(stackSize, abi.AllocZero)
	if stack == 0 {
		s.mgr.Free(rec)
		return 0
	}

	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}

	p := &s.procs[slot]

	*p = Process{
		ID:            s.nextID,
		Name:          name,
		State:         StateReady,
		Priority:      prio,
		StackBase:     stack,
		StackSize:     stackSize,
		TimeSlice:     DefaultTimeSlice,
		TimeRemaining: DefaultTimeSlice,
		Entry:         entry,
		Param:         0,
		Flags:         flags,
		recAddr:       rec,
		used:          true,
		next:          none,
		prev:          none,
	}

	s.nextID++

	if flags&abi.ProcSuspended != 0 {
		p.State = StateSuspended
	}

	s.buildFrame(p)
	s.pushFront(slot)

	s.stats.TotalProcesses++
	s.stats.ActiveProcesses++

	s.l.Info("process-create", "pid", p.ID, "name", p.Name, "priority", prio.String(), "stack", stackSize)

	return p.ID
}

// CreateWithParam is Create with an argument seeded into the entry
// frame's R0 slot.
func (s *Scheduler) CreateWithParam(name string, entry, stackSize uint32, prio Priority, flags, param uint32) uint32 {
	id := s.Create(name, entry, stackSize, prio, flags)
	if id == 0 {
		return 0
	}

	p := s.byID(id)
	p.Param = param
	s.mem.Write32(p.StackPtr+calleeBytes, param)

	return id
}

// Terminate unlinks a process and returns its stack and record storage
// to the heap. Terminating the current process forces an immediate
// preempt before returning; the idle process cannot be terminated.
func (s *Scheduler) Terminate(id uint32) abi.Status {
	if id == idleID {
		return abi.StatusInvalidParam
	}

	p := s.byID(id)
	if p == nil {
		return abi.StatusInvalidParam
	}

	slot := s.slotOf(p)
	wasCurrent := slot == s.current

	s.unlink(slot)

	s.mgr.Free(p.StackBase)
	s.mgr.Free(p.recAddr)

	p.State = StateTerminated
	p.used = false

	s.stats.ActiveProcesses--

	s.retired.Add(id, RetiredProcess{
		ID:       id,
		Name:     p.Name,
		Priority: p.Priority,
		Runtime:  p.TotalRuntime,
		EndedAt:  s.stats.SchedulerTicks,
	})

	s.l.Info("process-terminate", "pid", id, "name", p.Name)

	if wasCurrent {
		s.current = none
		s.Preempt()
	}

	return abi.StatusOK
}

// Suspend parks a ready process. The running process cannot suspend
// itself and the idle process is never suspended.
func (s *Scheduler) Suspend(id uint32) abi.Status {
	if id == idleID {
		return abi.StatusInvalidParam
	}

	p := s.byID(id)
	if p == nil {
		return abi.StatusInvalidParam
	}

	if s.slotOf(p) == s.current || p.State != StateReady {
		return abi.StatusInvalidParam
	}

	p.State = StateSuspended

	s.l.Debug("process-suspend", "pid", id)

	return abi.StatusOK
}

func (s *Scheduler) Resume(id uint32) abi.Status {
	p := s.byID(id)
	if p == nil || p.State != StateSuspended {
		return abi.StatusInvalidParam
	}

	p.State = StateReady

	s.l.Debug("process-resume", "pid", id)

	return abi.StatusOK
}

// Current returns a copy of the running process record, or nil when no
// process is current.
func (s *Scheduler) Current() *Process {
	if s.current == none {
		return nil
	}

	cp := s.procs[s.current]

	return &cp
}

func (s *Scheduler) ByID(id uint32) *Process {
	p := s.byID(id)
	if p == nil {
		return nil
	}

	cp := *p

	return &cp
}

// Snapshot copies the process list in list order, newest first.
func (s *Scheduler) Snapshot() []Process {
	var out []Process

	for i := s.head; i != none; i = s.procs[i].next {
		out = append(out, s.procs[i])
	}

	return out
}

// Retired returns the post-mortem records of recently terminated
// processes, most recent death first. The history is a bounded cache,
// so the oldest records fall away as processes keep exiting.
func (s *Scheduler) Retired() []RetiredProcess {
	var out []RetiredProcess

	for _, key := range s.retired.Keys() {
		if v, ok := s.retired.Get(key); ok {
			out = append(out, v.(RetiredProcess))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].EndedAt != out[j].EndedAt {
			return out[i].EndedAt > out[j].EndedAt
		}

		return out[i].ID > out[j].ID
	})

	return out
}

func (s *Scheduler) Stats() Stats {
	st := s.stats

	if st.SchedulerTicks > 0 {
		st.IdleTimePercent = s.procs[0].TotalRuntime * 100 / st.SchedulerTicks
	}

	return st
}

func (s *Scheduler) Running() bool {
	return s.running
}

// nextReady scans the list for the ready process with the highest
// priority. Strict greater-than over the newest-first list makes the
// most recently created process win ties.
func (s *Scheduler) nextReady() int {
	best := none
	bestPrio := PriorityIdle

	for i := s.head; i != none; i = s.procs[i].next {
		p := &s.procs[i]

		if p.State != StateReady {
			continue
		}

		if best == none || p.Priority > bestPrio {
			best = i
			bestPrio = p.Priority
		}
	}

	return best
}

func (s *Scheduler) byID(id uint32) *Process {
	for i := s.head; i != none; i = s.procs[i].next {
		if s.procs[i].ID == id {
			return &s.procs[i]
		}
	}

	return nil
}

func (s *Scheduler) slotOf(p *Process) int {
	for i := range s.procs {
		if &s.procs[i] == p {
			return i
		}
	}

	return none
}

func (s *Scheduler) freeSlot() int {
	for i := range s.procs {
		if !s.procs[i].used {
			return i
		}
	}

	return none
}

func (s *Scheduler) pushFront(slot int) {
	s.procs[slot].next = s.head
	s.procs[slot].prev = none

	if s.head != none {
		s.procs[s.head].prev = slot
	}

	s.head = slot
}

func (s *Scheduler) unlink(slot int) {
	p := &s.procs[slot]

	if p.prev != none {
		s.procs[p.prev].next = p.next
	} else {
		s.head = p.next
	}

	if p.next != none {
		s.procs[p.next].prev = p.prev
	}

	p.next = none
	p.prev = none
}

func fromID(p *Process) uint32 {
	if p == nil {
		return 0xFFFFFFFF
	}

	return p.ID
}

// tgmon is an interactive monitor over a simulated board: it boots the
// kernel, then maps single keystrokes to ticks, traps and state dumps.
package main

import (
	"fmt"
	"log"

	tty "github.com/mattn/go-tty"
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
	fStep  = pflag.IntP("step", "s", 100, "ticks per step key")
	fTrace = pflag.BoolP("trace", "v", false, "enable trace logging")
)

type monitor struct {
	k   *kernel.Kernel
	dev *wb55.Device
	mem *memory.Physical

	infoBuf uint32
	spawned []uint32
}

func main() {
	pflag.Parse()

	tlog.EnableDebug(*fTrace)

	mem := memory.NewPhysical(ramBase, *fRAM)
	dev := wb55.New(mem, wb55.Config{})

	k := kernel.New(dev, mem, tlog.L)

	if st := k.Init(); st != abi.StatusOK {
		log.Fatalf("kernel init failed at %s: %s", k.FailedStage(), st)
	}

	if st := k.Start(); st != abi.StatusOK {
		log.Fatalf("kernel start failed: %s", st)
	}

	m := &monitor{k: k, dev: dev, mem: mem}

	m.infoBuf = dev.SVCall(abi.SysMemoryAlloc, abi.SystemInfoSize, 0, abi.AllocZero, 0)
	if m.infoBuf == 0 {
		log.Fatal("info buffer allocation failed")
	}

	t, err := tty.Open()
	if err != nil {
		log.Fatal(err)
	}
	defer t.Close()

	help()

	for {
		r, err := t.ReadRune()
		if err != nil {
			log.Fatal(err)
		}

		if !m.handle(r) {
			return
		}
	}
}

func (m *monitor) handle(r rune) bool {
	switch r {
	case 't':
		m.k.RunTicks(1)
		fmt.Printf("tick=%d\n", m.k.TickCount())
	case 's':
		m.k.RunTicks(*fStep)
		fmt.Printf("tick=%d\n", m.k.TickCount())
	case 'p':
		m.processes()
	case 'm':
		m.memoryStats()
	case 'b':
		m.k.Memory().DumpBlocks(tlog.L)
	case 'i':
		m.interrupts()
	case 'g':
		m.sysinfo()
	case 'r':
		m.bootTrail()
	case 'n':
		m.spawn()
	case 'k':
		m.kill()
	case 'y':
		m.dev.SVCall(abi.SysSchedulerYield, 0, 0, 0, 0)
		fmt.Printf("yielded, current=%d\n", m.k.Scheduler().Current().ID)
	case 'q':
		m.k.Shutdown()
		fmt.Printf("halted code=%d\n", m.dev.HaltCode())
		return false
	case 'h', '?':
		help()
	}

	return true
}

func (m *monitor) spawn() {
	entry := uint32(flashBase + len(m.spawned)*0x100)

	pid := m.dev.SVCall(abi.SysProcessCreate, entry, 1024, uint32(sched.PriorityNormal), abi.ProcUser)
	if pid == 0 {
		fmt.Println("spawn failed")
		return
	}

	m.spawned = append(m.spawned, pid)
	fmt.Printf("spawned pid=%d entry=%08x\n", pid, entry)
}

func (m *monitor) kill() {
	if len(m.spawned) == 0 {
		fmt.Println("nothing to kill")
		return
	}

	pid := m.spawned[len(m.spawned)-1]

	if ret := m.dev.SVCall(abi.SysProcessTerminate, pid, 0, 0, 0); ret != 0 {
		fmt.Printf("terminate pid=%d failed\n", pid)
		return
	}

	m.spawned = m.spawned[:len(m.spawned)-1]
	fmt.Printf("terminated pid=%d\n", pid)
}

func help() {
	fmt.Println(`keys:
  t  one tick          s  run a step of ticks
  p  processes         m  memory
  b  heap blocks       i  interrupt stats
  g  system info trap  r  boot trail
  n  spawn a process   k  kill newest
  y  yield             q  quit
  h  this help`)
}

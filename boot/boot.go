// Package boot sequences the hardware out of reset: power and flash
// setup, the HSE/PLL clock tree, the system tick timer. Every stage
// leaves a record behind so a failed bring-up can be read back later.
package boot

import (
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/hw"
)

// ErrClockTimeout is reported when an oscillator ready flag never
// latches within the spin bound.
var ErrClockTimeout = errors.New("clock ready flag timed out")

// maxWaitSpins bounds every ready-flag poll loop.
const maxWaitSpins = 10000

// Stage identifies a step of the boot sequence.
type Stage uint32

const (
	StageStart Stage = iota
	StageHardwareInit
	StageClockInit
	StageMemoryInit
	StageInterruptInit
	StageSchedulerInit
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageHardwareInit:
		return "hardware-init"
	case StageClockInit:
		return "clock-init"
	case StageMemoryInit:
		return "memory-init"
	case StageInterruptInit:
		return "interrupt-init"
	case StageSchedulerInit:
		return "scheduler-init"
	case StageComplete:
		return "complete"
	}

	return "unknown"
}

// Record is the outcome of one boot step: how it ended, how many
// ready-flag polls it took and how long it ran on the wall clock.
type Record struct {
	Stage    Stage
	Status   abi.Status
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Sequencer drives the boot steps against the register file and keeps
// the trail of records.
type Sequencer struct {
	regs hw.Regs
	l    hclog.Logger

	stage   Stage
	records []Record
}

func New(regs hw.Regs, l hclog.Logger) *Sequencer {
	return &Sequencer{
		regs: regs,
		l:    l,
	}
}

func (s *Sequencer) SetStage(stage Stage) {
	s.stage = stage
	s.l.Debug("boot-stage", "stage", stage.String())
}

func (s *Sequencer) Stage() Stage {
	return s.stage
}

// Run executes one caller-provided boot step under a stage transition
// and records its outcome.
func (s *Sequencer) Run(stage Stage, fn func() (abi.Status, error)) (abi.Status, error) {
	s.SetStage(stage)

	started := time.Now()
	st, err := fn()

	s.record(stage, st, 0, started, err)

	if err != nil {
		s.l.Error("boot-stage-failed", "stage", stage.String(), "status", st.String(), "error", err)
	}

	return st, err
}

// InitHardware brings up the parts the clock tree depends on: voltage
// scaling and the flash wait states 64MHz operation needs.
func (s *Sequencer) InitHardware() abi.Status {
	s.SetStage(StageHardwareInit)

	started := time.Now()

	s.regs.Write32(hw.PWRCR1, s.regs.Read32(hw.PWRCR1)|hw.PWRCR1VOS)

	acr := s.regs.Read32(hw.FlashACR)
	acr = acr&^hw.FlashACRLatencyMask | hw.FlashACRLatency3WS
	acr |= hw.FlashACRPrefetch | hw.FlashACRICache
	s.regs.Write32(hw.FlashACR, acr)

	s.record(StageHardwareInit, abi.StatusOK, 0, started, nil)

	return abi.StatusOK
}

// InitClocks walks the tree up to 64MHz: HSE on, PLL configured and
// locked, system clock switched over. Each ready flag gets a bounded
// poll; a flag that never latches ends the stage with a timeout.
func (s *Sequencer) InitClocks() abi.Status {
	s.SetStage(StageClockInit)

	started := time.Now()
	attempts := 0

	s.regs.Write32(hw.RCCCR, s.regs.Read32(hw.RCCCR)|hw.RCCCRHSEON)

	n, ok := s.waitSet(hw.RCCCR, hw.RCCCRHSERDY)
	attempts += n

	if !ok {
		return s.clockTimeout("hse", attempts, started)
	}

	s.regs.Write32(hw.RCCPLLCFGR, hw.PLLCFGRValue)
	s.regs.Write32(hw.RCCCR, s.regs.Read32(hw.RCCCR)|hw.RCCCRPLLON)

	n, ok = s.waitSet(hw.RCCCR, hw.RCCCRPLLRDY)
	attempts += n

	if !ok {
		return s.clockTimeout("pll", attempts, started)
	}

	cfgr := s.regs.Read32(hw.RCCCFGR)
	s.regs.Write32(hw.RCCCFGR, cfgr&^hw.RCCCFGRSWMask | hw.RCCCFGRSWPLL)

	n, ok = s.waitSet(hw.RCCCFGR, hw.RCCCFGRSWSMask)
	attempts += n

	if !ok {
		return s.clockTimeout("sysclk-switch", attempts, started)
	}

	s.record(StageClockInit, abi.StatusOK, attempts, started, nil)

	s.l.Info("clocks-up", "sysclk-hz", hw.CPUFreqHz, "attempts", attempts)

	return abi.StatusOK
}

// InitTimers arms SysTick at the requested rate off the processor
// clock. Recorded under the clock stage; it runs as part of it.
func (s *Sequencer) InitTimers(hz uint32) abi.Status {
	started := time.Now()

	if hz == 0 || hz > hw.CPUFreqHz {
		err := errors.Errorf("bad tick rate %d", hz)
		s.record(StageClockInit, abi.StatusInvalidParam, 0, started, err)

		return abi.StatusInvalidParam
	}

	reload := uint32(hw.CPUFreqHz)/hz - 1

	s.regs.Write32(hw.SysTickLOAD, reload)
	s.regs.Write32(hw.SysTickVAL, 0)
	s.regs.Write32(hw.SysTickCTRL, hw.SysTickCTRLClkSource|hw.SysTickCTRLTickInt|hw.SysTickCTRLEnable)

	s.record(StageClockInit, abi.StatusOK, 0, started, nil)

	s.l.Debug("systick-armed", "hz", hz, "reload", reload)

	return abi.StatusOK
}

// Records returns the boot trail in order.
func (s *Sequencer) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)

	return out
}

func (s *Sequencer) HasErrors() bool {
	for _, rec := range s.records {
		if rec.Status != abi.StatusOK {
			return true
		}
	}

	return false
}

func (s *Sequencer) ElapsedTotal() time.Duration {
	var total time.Duration

	for _, rec := range s.records {
		total += rec.Elapsed
	}

	return total
}

func (s *Sequencer) waitSet(addr, mask uint32) (int, bool) {
	for i := 1; i <= maxWaitSpins; i++ {
		if s.regs.Read32(addr)&mask == mask {
			return i, true
		}
	}

	return maxWaitSpins, false
}

func (s *Sequencer) clockTimeout(what string, attempts int, started time.Time) abi.Status {
	err := errors.Wrap(ErrClockTimeout, what)

	s.record(StageClockInit, abi.StatusTimeout, attempts, started, err)
	s.l.Error("clock-timeout", "flag", what, "attempts", attempts)

	return abi.StatusTimeout
}

func (s *Sequencer) record(stage Stage, st abi.Status, attempts int, started time.Time, err error) {
	s.records = append(s.records, Record{
		Stage:    stage,
		Status:   st,
		Attempts: attempts,
		Elapsed:  time.Since(started),
		Err:      err,
	})
}

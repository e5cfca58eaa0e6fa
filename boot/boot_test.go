package boot

import (
	"testing"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"

	"github.com/Lnrchaos/tweakngeek-firmware/abi"
	"github.com/Lnrchaos/tweakngeek-firmware/hw"
	"github.com/Lnrchaos/tweakngeek-firmware/hw/wb55"
	"github.com/Lnrchaos/tweakngeek-firmware/memory"
)

func newTestSequencer(cfg wb55.Config) (*Sequencer, *wb55.Device) {
	mem := memory.NewPhysical(0x20000000, 64*1024)
	dev := wb55.New(mem, cfg)

	return New(dev, hclog.NewNullLogger()), dev
}

func TestBootSequence(t *testing.T) {
	n := neko.Modern(t)

	n.It("configures power and flash for 64MHz", func(t *testing.T) {
		s, dev := newTestSequencer(wb55.Config{})

		require.Equal(t, abi.StatusOK, s.InitHardware())

		require.NotZero(t, dev.Read32(hw.PWRCR1)&hw.PWRCR1VOS)

		acr := dev.Read32(hw.FlashACR)
		require.Equal(t, uint32(hw.FlashACRLatency3WS), acr&hw.FlashACRLatencyMask)
		require.NotZero(t, acr&hw.FlashACRPrefetch)
		require.NotZero(t, acr&hw.FlashACRICache)
	})

	n.It("brings the clock tree up to the pll", func(t *testing.T) {
		s, dev := newTestSequencer(wb55.Config{})

		require.Equal(t, abi.StatusOK, s.InitHardware())
		require.Equal(t, abi.StatusOK, s.InitClocks())

		cr := dev.Read32(hw.RCCCR)
		require.NotZero(t, cr&hw.RCCCRHSERDY)
		require.NotZero(t, cr&hw.RCCCRPLLRDY)

		require.Equal(t, uint32(hw.PLLCFGRValue), dev.Read32(hw.RCCPLLCFGR))

		cfgr := dev.Read32(hw.RCCCFGR)
		require.Equal(t, uint32(hw.RCCCFGRSWPLL), cfgr&hw.RCCCFGRSWMask)
		require.Equal(t, uint32(hw.RCCCFGRSWPLL)<<hw.RCCCFGRSWSPos, cfgr&hw.RCCCFGRSWSMask)
	})

	n.It("counts the ready polls per stage", func(t *testing.T) {
		s, _ := newTestSequencer(wb55.Config{})

		s.InitHardware()
		require.Equal(t, abi.StatusOK, s.InitClocks())

		recs := s.Records()
		require.Len(t, recs, 2)
		require.Equal(t, StageClockInit, recs[1].Stage)
		require.Equal(t, 7, recs[1].Attempts)

		require.False(t, s.HasErrors())
		require.True(t, s.ElapsedTotal() > 0)
	})

	n.It("arms systick at the kernel tick rate", func(t *testing.T) {
		s, dev := newTestSequencer(wb55.Config{})

		require.Equal(t, abi.StatusOK, s.InitTimers(hw.TickRateHz))

		require.Equal(t, uint32(63999), dev.Read32(hw.SysTickLOAD))
		require.Zero(t, dev.Read32(hw.SysTickVAL))

		want := uint32(hw.SysTickCTRLEnable | hw.SysTickCTRLTickInt | hw.SysTickCTRLClkSource)
		require.Equal(t, want, dev.Read32(hw.SysTickCTRL))
	})

	n.It("rejects a zero tick rate", func(t *testing.T) {
		s, _ := newTestSequencer(wb55.Config{})

		require.Equal(t, abi.StatusInvalidParam, s.InitTimers(0))

		require.True(t, s.HasErrors())
		require.Equal(t, abi.StatusInvalidParam, s.Records()[0].Status)
	})

	n.Meow()
}

func TestClockTimeout(t *testing.T) {
	n := neko.Modern(t)

	n.It("times out when the hse never latches", func(t *testing.T) {
		s, _ := newTestSequencer(wb55.Config{StuckHSE: true})

		require.Equal(t, abi.StatusTimeout, s.InitClocks())
		require.True(t, s.HasErrors())

		rec := s.Records()[0]
		require.Equal(t, abi.StatusTimeout, rec.Status)
		require.Equal(t, maxWaitSpins, rec.Attempts)
		require.Equal(t, ErrClockTimeout, errors.Cause(rec.Err))
	})

	n.It("times out when the pll never locks", func(t *testing.T) {
		s, dev := newTestSequencer(wb55.Config{StuckPLL: true})

		require.Equal(t, abi.StatusTimeout, s.InitClocks())

		rec := s.Records()[0]
		require.Equal(t, 3+maxWaitSpins, rec.Attempts)
		require.Equal(t, ErrClockTimeout, errors.Cause(rec.Err))

		require.NotZero(t, dev.Read32(hw.RCCCR)&hw.RCCCRHSERDY)
		require.Zero(t, dev.Read32(hw.RCCCR)&hw.RCCCRPLLRDY)
	})

	n.Meow()
}

func TestRun(t *testing.T) {
	n := neko.Modern(t)

	n.It("records caller stages", func(t *testing.T) {
		s, _ := newTestSequencer(wb55.Config{})

		st, err := s.Run(StageMemoryInit, func() (abi.Status, error) {
			return abi.StatusOK, nil
		})

		require.NoError(t, err)
		require.Equal(t, abi.StatusOK, st)
		require.Equal(t, StageMemoryInit, s.Stage())

		recs := s.Records()
		require.Len(t, recs, 1)
		require.Equal(t, StageMemoryInit, recs[0].Stage)
	})

	n.It("propagates stage failures", func(t *testing.T) {
		s, _ := newTestSequencer(wb55.Config{})

		boom := errors.New("no heap")

		st, err := s.Run(StageMemoryInit, func() (abi.Status, error) {
			return abi.StatusNoMemory, boom
		})

		require.Equal(t, abi.StatusNoMemory, st)
		require.Equal(t, boom, err)
		require.True(t, s.HasErrors())
	})

	n.Meow()
}

package hw

// STM32WB55 register map. Only the registers the kernel core touches.

const (
	CPUFreqHz  = 64000000
	TickRateHz = 1000
)

// Reset and clock control.
const (
	RCCBase    = 0x58000000
	RCCCR      = RCCBase + 0x00
	RCCCFGR    = RCCBase + 0x08
	RCCPLLCFGR = RCCBase + 0x0C

	RCCCRHSEON  = 1 << 16
	RCCCRHSERDY = 1 << 17
	RCCCRPLLON  = 1 << 24
	RCCCRPLLRDY = 1 << 25

	RCCCFGRSWMask  = 0x3
	RCCCFGRSWPLL   = 0x3
	RCCCFGRSWSPos  = 2
	RCCCFGRSWSMask = 0x3 << RCCCFGRSWSPos
)

// PLL configuration: HSE/4 * 16 / 2 = 64MHz.
const (
	PLLM = 4
	PLLN = 16
	PLLR = 2

	PLLCFGRValue = PLLR<<25 | 1<<24 | PLLN<<8 | PLLM<<4 | 2<<0
)

// Power and flash control.
const (
	PWRBase = 0x58000400
	PWRCR1  = PWRBase + 0x00

	PWRCR1VOS = 1 << 9

	FlashBase = 0x58004000
	FlashACR  = FlashBase + 0x00

	FlashACRLatencyMask = 0x7
	FlashACRLatency3WS  = 0x3
	FlashACRPrefetch    = 1 << 8
	FlashACRICache      = 1 << 9
)

// SysTick.
const (
	SysTickBase = 0xE000E010
	SysTickCTRL = SysTickBase + 0x00
	SysTickLOAD = SysTickBase + 0x04
	SysTickVAL  = SysTickBase + 0x08

	SysTickCTRLEnable    = 1 << 0
	SysTickCTRLTickInt   = 1 << 1
	SysTickCTRLClkSource = 1 << 2
)

// Nested vectored interrupt controller. ISER/ICER/ISPR/ICPR are banks of
// 32-bit registers, one bit per IRQ; IPR is one byte per IRQ, packed four
// to a word.
const (
	NVICBase = 0xE000E100
	NVICISER = NVICBase + 0x000
	NVICICER = NVICBase + 0x080
	NVICISPR = NVICBase + 0x100
	NVICICPR = NVICBase + 0x180
	NVICIPR  = NVICBase + 0x300
)

// System control block.
const (
	SCBBase  = 0xE000ED00
	SCBVTOR  = SCBBase + 0x08
	SCBSHPR1 = SCBBase + 0x18
	SCBSHPR2 = SCBBase + 0x1C
	SCBSHPR3 = SCBBase + 0x20
)

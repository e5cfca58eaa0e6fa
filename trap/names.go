package trap

// STM32WB55 CPU1 vector names, position = IRQ number.
var vectorNames = [MaxIRQ]string{
	"WWDG",
	"PVD_PVM",
	"TAMP_STAMP_LSECSS",
	"RTC_WKUP",
	"FLASH",
	"RCC",
	"EXTI0",
	"EXTI1",
	"EXTI2",
	"EXTI3",
	"EXTI4",
	"DMA1_CH1",
	"DMA1_CH2",
	"DMA1_CH3",
	"DMA1_CH4",
	"DMA1_CH5",
	"DMA1_CH6",
	"DMA1_CH7",
	"ADC1",
	"USB_HP",
	"USB_LP",
	"C2SEV_PWR_C2H",
	"COMP",
	"EXTI9_5",
	"TIM1_BRK",
	"TIM1_UP_TIM16",
	"TIM1_TRG_COM_TIM17",
	"TIM1_CC",
	"TIM2",
	"PKA",
	"I2C1_EV",
	"I2C1_ER",
	"I2C3_EV",
	"I2C3_ER",
	"SPI1",
	"SPI2",
	"USART1",
	"LPUART1",
	"SAI1",
	"TSC",
	"EXTI15_10",
	"RTC_ALARM",
	"CRS",
	"PWR_SOTF_BLEACT_802ACT_RFPHASE",
	"IPCC_C1_RX",
	"IPCC_C1_TX",
	"HSEM",
	"LPTIM1",
	"LPTIM2",
	"LCD",
	"QUADSPI",
	"AES1",
	"AES2",
	"RNG",
	"FPU",
	"DMA2_CH1",
	"DMA2_CH2",
	"DMA2_CH3",
	"DMA2_CH4",
	"DMA2_CH5",
	"DMA2_CH6",
	"DMA2_CH7",
	"DMAMUX1_OVR",
}

// VectorName reports the hardware name of an interrupt line.
func VectorName(irq int) string {
	if irq < 0 || irq >= MaxIRQ {
		return ""
	}

	return vectorNames[irq]
}

package main

import (
	"machine"

	"libdb.so/stargate/pico"
)

func main() {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	d, err := NewDevice(uart, pico.ChevronPins, pico.PWMPeriod)
	if err != nil {
		// No host connection is guaranteed yet, but send it anyway and halt.
		dev := &Device{uart: uart}
		dev.logError(err)
		dev.sendPacket(PanicPacket{})
		select {}
	}

	d.Run()
}

// Command ringtest sweeps a test pattern around a WS2812 ring wired to the
// Pico, one pixel per chevron position. Handy for checking the ring before
// wiring the real chevron LEDs.
package main

import (
	"image/color"
	"machine"
	"runtime/interrupt"
	"time"

	"libdb.so/stargate/pico"
	"tinygo.org/x/drivers/ws2812"
)

var pixels = make([]color.RGBA, len(pico.ChevronPins))

func main() {
	pico.RingPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	ring := ws2812.New(pico.RingPin)

	var pos int
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		for i := range pixels {
			pixels[i] = color.RGBA{}
		}
		pixels[pos] = color.RGBA{R: 255, G: 160, B: 60, A: 255}
		pos = (pos + 1) % len(pixels)

		critical(func() { ring.WriteColors(pixels[:]) })
	}
}

func critical(f func()) {
	state := interrupt.Disable()
	f()
	interrupt.Restore(state)
}

// Package hw contains the concrete hardware adapters behind the daemon's
// boundary interfaces: chevron light drivers and the trigger input.
package hw

import (
	"github.com/pkg/errors"
	ws2811 "github.com/rpi-ws281x/rpi-ws281x-go"

	"libdb.so/stargate/internal/light"
)

// WS281xLights drives the chevron ring as segments of a WS2812 strip
// attached to a Raspberry Pi. Each chevron spans a fixed run of
// consecutive pixels; brightness scales the configured chevron color.
type WS281xLights struct {
	dev        *ws2811.WS2811
	perChevron int
	color      [3]float64 // RGB, 0-1
	dirty      bool
}

var (
	_ light.Output  = (*WS281xLights)(nil)
	_ light.Flusher = (*WS281xLights)(nil)
)

// NewWS281xLights initializes the strip. color is 0xRRGGBB; brightness is
// the strip's global brightness, 0-255.
func NewWS281xLights(pin, chevrons, perChevron, brightness int, color uint32) (*WS281xLights, error) {
	if perChevron <= 0 {
		perChevron = 1
	}
	if brightness <= 0 || brightness > 255 {
		brightness = 128
	}
	if color == 0 {
		color = 0xffd9a0 // warm white
	}

	opt := ws2811.DefaultOptions
	opt.Channels[0].GpioPin = pin
	opt.Channels[0].Brightness = brightness
	opt.Channels[0].LedCount = chevrons * perChevron

	dev, err := ws2811.MakeWS2811(&opt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create ws281x device")
	}
	if err := dev.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ws281x strip")
	}

	return &WS281xLights{
		dev:        dev,
		perChevron: perChevron,
		color: [3]float64{
			float64(color>>16&0xff) / 255,
			float64(color>>8&0xff) / 255,
			float64(color&0xff) / 255,
		},
	}, nil
}

// Set scales the chevron's pixel run by the given brightness.
func (w *WS281xLights) Set(index int, level float64) {
	pix := uint32(w.color[0]*level*255)<<16 |
		uint32(w.color[1]*level*255)<<8 |
		uint32(w.color[2]*level*255)
	leds := w.dev.Leds(0)
	for i := 0; i < w.perChevron; i++ {
		leds[index*w.perChevron+i] = pix
	}
	w.dirty = true
}

// Flush renders pending pixel changes to the strip.
func (w *WS281xLights) Flush() error {
	if !w.dirty {
		return nil
	}
	w.dirty = false
	if err := w.dev.Render(); err != nil {
		return errors.Wrap(err, "failed to render ws281x strip")
	}
	return nil
}

// Close turns the strip off and releases the device.
func (w *WS281xLights) Close() error {
	leds := w.dev.Leds(0)
	for i := range leds {
		leds[i] = 0
	}
	if err := w.dev.Render(); err != nil {
		w.dev.Fini()
		return errors.Wrap(err, "failed to blank ws281x strip")
	}
	w.dev.Fini()
	return nil
}

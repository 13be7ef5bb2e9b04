package pico

import "machine"

// Chevron wiring for the Raspberry Pi Pico light board, viewed from the
// front of the gate:
//
//	      [0]          <- top / master chevron
//	 [8]       [1]
//	[7]           [2]
//	[6]           [3]
//	 [5]       [4]
var ChevronPins = []machine.Pin{
	machine.GP2,  // 0 - top (master)
	machine.GP3,  // 1 - upper-right
	machine.GP4,  // 2 - right
	machine.GP5,  // 3 - lower-right
	machine.GP6,  // 4 - bottom-right
	machine.GP7,  // 5 - bottom-left
	machine.GP8,  // 6 - left
	machine.GP9,  // 7 - upper-left
	machine.GP10, // 8 - upper-left-of-top
}

// PWMPeriod is the PWM period in nanoseconds (1 kHz).
const PWMPeriod uint64 = 1e9 / 1000

// RingPin is the data line of the optional WS2812 ring used by the
// ringtest command.
const RingPin = machine.GP27

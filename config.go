package stargate

import (
	"encoding"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"libdb.so/stargate/internal/animation"
)

// Role determines which side of the wireless link this gate plays.
type Role string

const (
	// RoleStandalone is a single gate with no link.
	RoleStandalone Role = "standalone"
	// RoleInitiator advertises and sends first. Its transport is expected to
	// keep itself available; the protocol never reconnects on its behalf.
	RoleInitiator Role = "initiator"
	// RoleResponder connects to the initiator and keeps retrying at a fixed
	// interval while the link is down.
	RoleResponder Role = "responder"
)

// Config is the configuration for a gate. Absent or out-of-range values
// fall back to documented defaults rather than failing startup: a gate prop
// has no operator to report to at runtime, so the controller always comes
// up with something sane.
type Config struct {
	// Role selects standalone, initiator or responder behavior.
	Role Role `toml:"role"`
	// Chevrons is the number of lighting positions on the ring.
	Chevrons int `toml:"chevrons"`
	// LockOrder is the sequence in which chevrons lock during a dial. It
	// must be a permutation of every chevron index; the last entry is the
	// master chevron. Invalid orders fall back to a plain ring walk ending
	// at chevron 0.
	LockOrder []int `toml:"lock_order"`
	// PollInterval is the control-loop tick period.
	PollInterval Duration `toml:"poll_interval"`
	// Seed, when nonzero, makes the animation's randomness reproducible.
	Seed int64 `toml:"seed"`

	Trigger   TriggerConfig   `toml:"trigger"`
	Link      LinkConfig      `toml:"link"`
	Lights    LightsConfig    `toml:"lights"`
	Animation AnimationConfig `toml:"animation"`
}

// TriggerConfig describes the reed switch / button input.
type TriggerConfig struct {
	// Chip is the GPIO character device, e.g. "gpiochip0".
	Chip string `toml:"chip"`
	// Line is the GPIO line offset the switch is wired to.
	Line int `toml:"line"`
	// ActiveLow is true for a normally-open switch to ground with the
	// internal pull-up enabled.
	ActiveLow bool `toml:"active_low"`
	// Debounce is how long a raw transition must hold before it counts.
	Debounce Duration `toml:"debounce"`
}

// LinkConfig describes the serial port of the UART radio module that
// carries the gate-to-gate link.
type LinkConfig struct {
	// Device is the serial device of the radio module.
	Device string `toml:"device"`
	// Baud is the baud rate for the radio module.
	Baud int `toml:"baud"`
	// ReconnectInterval is the responder's fixed retry interval.
	ReconnectInterval Duration `toml:"reconnect_interval"`
}

// LightsConfig selects the chevron LED driver. At most one of the fields
// should be set; with none set the daemon runs with a dark ring, which is
// only useful for bench-testing the link.
type LightsConfig struct {
	// WS281x drives a WS2812 ring directly from a Raspberry Pi.
	WS281x *WS281xConfig `toml:"ws281x,omitempty"`
	// Serial talks lightserial to a chevron light board over a serial port.
	Serial *SerialLightsConfig `toml:"serial,omitempty"`
}

// WS281xConfig configures the directly attached WS2812 ring.
type WS281xConfig struct {
	// Pin is the GPIO pin carrying the WS2812 data line.
	Pin int `toml:"pin"`
	// PixelsPerChevron is how many consecutive pixels each chevron spans.
	PixelsPerChevron int `toml:"pixels_per_chevron"`
	// Brightness is the strip's global brightness, 0-255.
	Brightness int `toml:"brightness"`
	// Color is the chevron color as 0xRRGGBB. Defaults to warm white.
	Color uint32 `toml:"color"`
}

// SerialLightsConfig configures the serial-attached chevron board.
type SerialLightsConfig struct {
	Device string `toml:"device"`
	Baud   int    `toml:"baud"`
}

// AnimationConfig mirrors every animation timing knob. Zero values defer to
// the engine's defaults.
type AnimationConfig struct {
	RotationMin  Duration `toml:"rotation_min"`
	RotationMax  Duration `toml:"rotation_max"`
	RotationStep Duration `toml:"rotation_step"`
	ScanLevel    float64  `toml:"scan_level"`

	LockFlashes    int      `toml:"lock_flashes"`
	LockFlashOn    Duration `toml:"lock_flash_on"`
	LockFlashOff   Duration `toml:"lock_flash_off"`
	LockLevel      float64  `toml:"lock_level"`
	MasterFlashes  int      `toml:"master_flashes"`
	MasterFlashOn  Duration `toml:"master_flash_on"`
	MasterFlashOff Duration `toml:"master_flash_off"`

	IncomingStep Duration `toml:"incoming_step"`

	KawooshDuration Duration `toml:"kawoosh_duration"`
	KawooshOn       Duration `toml:"kawoosh_on"`
	KawooshOff      Duration `toml:"kawoosh_off"`

	WormholeTimeout    Duration `toml:"wormhole_timeout"`
	WormholeMinOpen    Duration `toml:"wormhole_min_open"`
	WormholeCloseDelay Duration `toml:"wormhole_close_delay"`
	WormholePeriod     Duration `toml:"wormhole_period"`
	WormholeMinLevel   float64  `toml:"wormhole_min_level"`
	WormholeMaxLevel   float64  `toml:"wormhole_max_level"`

	CloseFade Duration `toml:"close_fade"`

	SweepStep  Duration `toml:"sweep_step"`
	SweepLevel float64  `toml:"sweep_level"`
}

// Params converts the configuration into engine parameters. Defaulting of
// absent values happens inside the engine.
func (c AnimationConfig) Params() animation.Params {
	return animation.Params{
		RotationMin:  time.Duration(c.RotationMin),
		RotationMax:  time.Duration(c.RotationMax),
		RotationStep: time.Duration(c.RotationStep),
		ScanLevel:    c.ScanLevel,

		LockFlashes:    c.LockFlashes,
		LockFlashOn:    time.Duration(c.LockFlashOn),
		LockFlashOff:   time.Duration(c.LockFlashOff),
		LockLevel:      c.LockLevel,
		MasterFlashes:  c.MasterFlashes,
		MasterFlashOn:  time.Duration(c.MasterFlashOn),
		MasterFlashOff: time.Duration(c.MasterFlashOff),

		IncomingStep: time.Duration(c.IncomingStep),

		KawooshDuration: time.Duration(c.KawooshDuration),
		KawooshOn:       time.Duration(c.KawooshOn),
		KawooshOff:      time.Duration(c.KawooshOff),

		WormholeTimeout:    time.Duration(c.WormholeTimeout),
		WormholeMinOpen:    time.Duration(c.WormholeMinOpen),
		WormholeCloseDelay: time.Duration(c.WormholeCloseDelay),
		WormholePeriod:     time.Duration(c.WormholePeriod),
		WormholeMinLevel:   c.WormholeMinLevel,
		WormholeMaxLevel:   c.WormholeMaxLevel,

		CloseFade: time.Duration(c.CloseFade),

		SweepStep:  time.Duration(c.SweepStep),
		SweepLevel: c.SweepLevel,
	}
}

// normalize substitutes defaults for absent or invalid values.
func (c *Config) normalize() {
	switch c.Role {
	case RoleStandalone, RoleInitiator, RoleResponder:
	default:
		c.Role = RoleStandalone
	}
	if c.Chevrons <= 0 {
		c.Chevrons = 9
	}
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(5 * time.Millisecond)
	}
	if c.Trigger.Debounce <= 0 {
		c.Trigger.Debounce = Duration(50 * time.Millisecond)
	}
	if c.Link.ReconnectInterval <= 0 {
		c.Link.ReconnectInterval = Duration(8 * time.Second)
	}
	if c.Link.Baud <= 0 {
		c.Link.Baud = 9600
	}
}

// Duration is a duration that can be parsed from TOML.
type Duration time.Duration

var (
	_ encoding.TextUnmarshaler = (*Duration)(nil)
	_ encoding.TextMarshaler   = (*Duration)(nil)
)

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader. Absent or invalid
// values come back already replaced with their defaults.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	config.normalize()
	return &config, nil
}

package hw

import (
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"

	"libdb.so/stargate/internal/trigger"
)

// ReedSwitch samples the gate trigger from a GPIO line. Polarity is
// applied here so the monitor always sees true as "trigger active".
type ReedSwitch struct {
	line      *gpiocdev.Line
	activeLow bool
}

var _ trigger.Sampler = (*ReedSwitch)(nil)

// NewReedSwitch requests the GPIO line. Active-low switches (normally open
// to ground) get the internal pull-up; active-high get the pull-down.
func NewReedSwitch(chip string, offset int, activeLow bool) (*ReedSwitch, error) {
	if chip == "" {
		chip = "gpiochip0"
	}

	bias := gpiocdev.WithPullDown
	if activeLow {
		bias = gpiocdev.WithPullUp
	}

	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsInput, bias)
	if err != nil {
		return nil, errors.Wrap(err, "failed to request trigger line")
	}

	return &ReedSwitch{line: line, activeLow: activeLow}, nil
}

// Sample reads the line once.
func (r *ReedSwitch) Sample() (bool, error) {
	v, err := r.line.Value()
	if err != nil {
		return false, errors.Wrap(err, "failed to read trigger line")
	}
	if r.activeLow {
		return v == 0, nil
	}
	return v == 1, nil
}

// Close releases the GPIO line.
func (r *ReedSwitch) Close() error {
	return r.line.Close()
}

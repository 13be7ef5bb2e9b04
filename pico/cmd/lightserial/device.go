package main

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"machine"
)

// pwms maps an RP2040 PWM slice number to its peripheral.
var pwms = []*machine.PWM{
	machine.PWM0, machine.PWM1, machine.PWM2, machine.PWM3,
	machine.PWM4, machine.PWM5, machine.PWM6, machine.PWM7,
}

// chevron is one PWM-driven LED channel.
type chevron struct {
	pwm *machine.PWM
	ch  uint8
}

func (c chevron) set(level uint8) {
	c.pwm.Set(c.ch, uint32(uint64(c.pwm.Top())*uint64(level)/255))
}

// Device stores the current state of the light board.
type Device struct {
	uart     *machine.UART
	chevrons []chevron

	numChannels uint16
}

// NewDevice configures PWM on every chevron pin.
func NewDevice(uart *machine.UART, pins []machine.Pin, period uint64) (*Device, error) {
	chevrons := make([]chevron, 0, len(pins))
	for _, pin := range pins {
		slice, err := machine.PWMPeripheral(pin)
		if err != nil {
			return nil, fmt.Errorf("no PWM slice for pin %d: %w", pin, err)
		}
		pwm := pwms[slice]
		if err := pwm.Configure(machine.PWMConfig{Period: period}); err != nil {
			return nil, fmt.Errorf("failed to configure PWM for pin %d: %w", pin, err)
		}
		ch, err := pwm.Channel(pin)
		if err != nil {
			return nil, fmt.Errorf("no PWM channel for pin %d: %w", pin, err)
		}
		pwm.Set(ch, 0)
		chevrons = append(chevrons, chevron{pwm: pwm, ch: ch})
	}
	return &Device{
		uart:        uart,
		chevrons:    chevrons,
		numChannels: uint16(len(chevrons)),
	}, nil
}

// Run runs the device loop forever.
func (d *Device) Run() {
	for {
		p, err := d.readPacket()
		if err != nil {
			d.logError(err)
			continue
		}
		if err := d.handlePacket(p); err != nil {
			d.logError(err)
		}
	}
}

func (d *Device) logError(err error) {
	d.sendPacket(ErrorPacket{Message: err.Error()})
}

func (d *Device) sendPacket(p BoardPacket) {
	hash := crc32.NewIEEE()
	w := io.MultiWriter(d.uart, hash)

	switch p := p.(type) {
	case ErrorPacket:
		w.Write([]byte{byte(TypeErrorPacket)})
		binary.Write(w, binary.LittleEndian, uint16(len(p.Message)))
		io.WriteString(w, p.Message)

	case PanicPacket:
		w.Write([]byte{byte(TypePanicPacket)})

	case LogPacket:
		w.Write([]byte{byte(TypeLogPacket)})
		binary.Write(w, binary.LittleEndian, uint16(len(p.Message)))
		io.WriteString(w, p.Message)
	}

	binary.Write(d.uart, binary.LittleEndian, hash.Sum32())
}

func (d *Device) readPacket() (HostPacket, error) {
	hash := crc32.NewIEEE()
	r := io.TeeReader(d.uart, hash)

	var ptypeBuf [1]byte
	if _, err := io.ReadFull(r, ptypeBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read host packet type: %w", err)
	}

	var packet HostPacket
	switch HostPacketType(ptypeBuf[0]) {
	case TypeInitializePacket:
		var p InitializePacket
		if err := binary.Read(r, binary.LittleEndian, &p); err != nil {
			return nil, fmt.Errorf("failed to read channel count: %w", err)
		}
		packet = p

	case TypeClearPacket:
		packet = ClearPacket{}

	case TypeSetPacket:
		p := SetPacket{Levels: make([]uint8, d.numChannels)}
		if _, err := io.ReadFull(r, p.Levels); err != nil {
			return nil, fmt.Errorf("failed to read level data: %w", err)
		}
		packet = p

	default:
		return nil, fmt.Errorf("unknown packet type: %d", ptypeBuf[0])
	}

	sum := hash.Sum32()

	var checksum uint32
	if err := binary.Read(d.uart, binary.LittleEndian, &checksum); err != nil {
		return nil, fmt.Errorf("failed to read checksum: %w", err)
	}
	if checksum != sum {
		return nil, fmt.Errorf("checksum mismatch")
	}

	return packet, nil
}

func (d *Device) handlePacket(p HostPacket) error {
	switch p := p.(type) {
	case InitializePacket:
		if p.NumChannels < 1 || int(p.NumChannels) > len(d.chevrons) {
			return fmt.Errorf("invalid channel count: %d", p.NumChannels)
		}
		d.numChannels = p.NumChannels
		return nil

	case ClearPacket:
		for _, c := range d.chevrons {
			c.set(0)
		}
		return nil

	case SetPacket:
		if len(p.Levels) != int(d.numChannels) {
			return fmt.Errorf("invalid level count: %d", len(p.Levels))
		}
		for i, level := range p.Levels {
			d.chevrons[i].set(level)
		}
		return nil

	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}
}

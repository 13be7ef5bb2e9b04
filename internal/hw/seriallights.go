package hw

import (
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"go.bug.st/serial"

	"libdb.so/stargate/internal/light"
	"libdb.so/stargate/lightserial"
)

// SerialLights talks lightserial to a chevron light board over a serial
// port. Writes accumulate into a frame; Flush sends one Set packet per tick
// when anything changed.
type SerialLights struct {
	port   serial.Port
	logger *slog.Logger
	levels []uint8
	dirty  bool
}

var (
	_ light.Output  = (*SerialLights)(nil)
	_ light.Flusher = (*SerialLights)(nil)
)

// NewSerialLights opens the board's serial port and initializes it with
// the channel count. A background reader logs whatever the board reports.
func NewSerialLights(device string, baud, chevrons int, logger *slog.Logger) (*SerialLights, error) {
	if baud <= 0 {
		baud = 115200
	}

	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open light board port")
	}

	s := &SerialLights{
		port:   port,
		logger: logger,
		levels: make([]uint8, chevrons),
	}

	if err := lightserial.WriteHostPacket(port, lightserial.InitializePacket{
		NumChannels: uint16(chevrons),
	}); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to initialize light board")
	}

	go s.readLoop()
	return s, nil
}

// Set stages a brightness level for one chevron.
func (s *SerialLights) Set(index int, level float64) {
	v := uint8(math.Round(level * 255))
	if s.levels[index] == v {
		return
	}
	s.levels[index] = v
	s.dirty = true
}

// Flush sends the staged frame to the board if it changed.
func (s *SerialLights) Flush() error {
	if !s.dirty {
		return nil
	}
	s.dirty = false
	if err := lightserial.WriteHostPacket(s.port, lightserial.SetPacket{
		Levels: append([]uint8(nil), s.levels...),
	}); err != nil {
		return errors.Wrap(err, "failed to send light frame")
	}
	return nil
}

// Close blanks the board and closes the port.
func (s *SerialLights) Close() error {
	if err := lightserial.WriteHostPacket(s.port, lightserial.ClearPacket{}); err != nil {
		s.port.Close()
		return errors.Wrap(err, "failed to clear light board")
	}
	return s.port.Close()
}

func (s *SerialLights) readLoop() {
	for {
		p, err := lightserial.ReadBoardPacket(s.port)
		if err != nil {
			return
		}
		switch p := p.(type) {
		case lightserial.ErrorPacket:
			s.logger.Warn("light board reported error", "message", p.Message)
		case lightserial.PanicPacket:
			s.logger.Error("light board panicked")
			return
		case lightserial.LogPacket:
			s.logger.Info("light board log", "message", p.Message)
		}
	}
}

package link

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// SerialTransport drives the gate link through a UART radio module (an
// HC-05-class transparent bridge) on a serial port. Opening the port is
// "connected" from our side; the radio pairing underneath is the module's
// own business. A read error means the link dropped.
type SerialTransport struct {
	device string
	baud   int
	logger *slog.Logger

	mu        sync.Mutex
	port      serial.Port
	connected bool

	recv chan byte
}

var _ Transport = (*SerialTransport)(nil)

// NewSerialTransport creates a transport for the given serial device.
func NewSerialTransport(device string, baud int, logger *slog.Logger) *SerialTransport {
	if baud <= 0 {
		baud = 9600
	}
	return &SerialTransport{
		device: device,
		baud:   baud,
		logger: logger,
		recv:   make(chan byte, 16),
	}
}

// Connect opens the serial port and starts the background read loop.
// Calling Connect while connected is a no-op.
func (t *SerialTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.connected {
		return nil
	}

	port, err := serial.Open(t.device, &serial.Mode{BaudRate: t.baud})
	if err != nil {
		return errors.Wrap(err, "failed to open link serial port")
	}
	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return errors.Wrap(err, "failed to reset read timeout")
	}

	t.port = port
	t.connected = true
	go t.readLoop(port)
	return nil
}

// Connected reports whether the port is open.
func (t *SerialTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Send writes a single command byte. Fails if the link is down.
func (t *SerialTransport) Send(b byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return errors.New("link is down")
	}
	if _, err := t.port.Write([]byte{b}); err != nil {
		t.dropLocked()
		return errors.Wrap(err, "failed to write to link")
	}
	return nil
}

// Receive returns the inbound byte stream. The channel stays open across
// reconnects; bytes are dropped when the buffer is full rather than
// blocking the reader.
func (t *SerialTransport) Receive() <-chan byte {
	return t.recv
}

// Close shuts the port down.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil
	}
	port := t.port
	t.dropLocked()
	return port.Close()
}

func (t *SerialTransport) dropLocked() {
	t.connected = false
	t.port = nil
}

func (t *SerialTransport) readLoop(port serial.Port) {
	var buf [1]byte
	for {
		n, err := port.Read(buf[:])
		if err != nil {
			t.mu.Lock()
			if t.port == port {
				t.logger.Debug("link read failed, marking disconnected", "error", err)
				t.dropLocked()
				port.Close()
			}
			t.mu.Unlock()
			return
		}
		if n == 0 {
			continue
		}
		select {
		case t.recv <- buf[0]:
		default:
			// Receiver is behind; at-most-one-in-flight semantics make
			// dropped bytes tolerable.
		}
	}
}

// Package link manages the wireless command channel between two gates: the
// one-byte gatewire protocol on top of an abstract transport, plus the
// responder's fixed-interval reconnect schedule.
package link

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"libdb.so/stargate/gatewire"
)

// Transport is the byte-level channel boundary. The connection machinery
// below it (pairing, advertising, port management) is the transport's own
// business; the protocol only consumes its events.
//
// Connect may block and is only ever called from a goroutine the Protocol
// owns. Send must not block for longer than a write.
type Transport interface {
	Connect(ctx context.Context) error
	Connected() bool
	Send(b byte) error
	Receive() <-chan byte
	Close() error
}

// ConnectionState is the responder's view of the link.
type ConnectionState int

const (
	// Disconnected means the link is down and a retry is scheduled.
	Disconnected ConnectionState = iota
	// Connecting means a connect attempt is in flight.
	Connecting
	// Connected means the link is up.
	Connected
)

// String returns a string representation of the connection state.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Protocol encodes gate messages onto a Transport and, in the responder
// role, keeps the link alive with fixed-interval reconnect attempts. All
// methods are called from the single control-loop goroutine; the only
// concurrency inside is the connect attempt, whose result is handed back
// through a channel and collected on a later tick.
type Protocol struct {
	tr        Transport
	logger    *slog.Logger
	reconnect bool          // responder role: schedule reconnects
	interval  time.Duration // fixed retry interval

	state     ConnectionState
	nextRetry time.Time
	result    chan error
}

// NewProtocol creates a Protocol over the given transport. When reconnect
// is set (responder role), Tick schedules connect attempts every interval
// while the link is down; otherwise the protocol is passive and relies on
// the transport's own lifecycle.
func NewProtocol(tr Transport, logger *slog.Logger, reconnect bool, interval time.Duration) *Protocol {
	if interval <= 0 {
		interval = 8 * time.Second
	}
	return &Protocol{
		tr:        tr,
		logger:    logger,
		reconnect: reconnect,
		interval:  interval,
		result:    make(chan error, 1),
	}
}

// State returns the current connection state. For passive (initiator)
// protocols it mirrors the transport's connected flag.
func (p *Protocol) State() ConnectionState {
	if !p.reconnect {
		if p.tr.Connected() {
			return Connected
		}
		return Disconnected
	}
	return p.state
}

// Send encodes and sends a message, best effort. A send while disconnected
// is a silent no-op: the hard wormhole timeout is the backstop for any
// message that never arrives.
func (p *Protocol) Send(m gatewire.Message) {
	if !p.tr.Connected() {
		p.logger.Debug("link down, dropping outgoing message", "message", m)
		return
	}
	if err := p.tr.Send(m.Encode()); err != nil {
		p.logger.Warn("failed to send message", "message", m, "error", err)
	}
}

// Drain empties the transport's receive buffer without blocking and
// returns the decoded messages in arrival order. Unknown bytes are logged
// and dropped, never surfaced as errors.
func (p *Protocol) Drain() []gatewire.Message {
	var msgs []gatewire.Message
	for {
		select {
		case b, ok := <-p.tr.Receive():
			if !ok {
				return msgs
			}
			m, ok := gatewire.Decode(b)
			if !ok {
				p.logger.Debug("ignoring unknown byte on link", "byte", fmt.Sprintf("0x%02x", b))
				continue
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

// Tick advances the reconnect schedule. It never blocks: an attempt runs in
// its own goroutine and its outcome is collected here on a later tick.
func (p *Protocol) Tick(ctx context.Context, now time.Time) {
	if !p.reconnect {
		return
	}

	switch p.state {
	case Connecting:
		select {
		case err := <-p.result:
			if err != nil {
				p.logger.Debug("connect attempt failed", "error", err)
				p.state = Disconnected
				p.nextRetry = now.Add(p.interval)
			} else {
				p.logger.Info("link established")
				p.state = Connected
			}
		default:
		}

	case Connected:
		if !p.tr.Connected() {
			p.logger.Warn("link lost")
			p.state = Disconnected
			p.nextRetry = now.Add(p.interval)
		}

	case Disconnected:
		if p.tr.Connected() {
			p.state = Connected
			return
		}
		if now.Before(p.nextRetry) {
			return
		}
		p.state = Connecting
		go func() {
			p.result <- p.tr.Connect(ctx)
		}()
	}
}

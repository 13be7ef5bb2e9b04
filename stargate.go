// Package stargate drives a chevron LED ring through the science-fiction
// gate dialing sequence: triggered by a reed switch, optionally mirrored on
// a second gate over a wireless serial link.
package stargate

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"libdb.so/stargate/gatewire"
	"libdb.so/stargate/internal/animation"
	"libdb.so/stargate/internal/light"
	"libdb.so/stargate/internal/link"
	"libdb.so/stargate/internal/trigger"
)

// Hardware bundles the daemon's boundary collaborators. Lights and Trigger
// may be nil (dark ring, never-pressed trigger); Link must be set for the
// initiator and responder roles and nil otherwise.
type Hardware struct {
	Lights  light.Output
	Trigger trigger.Sampler
	Link    link.Transport
}

// darkOutput discards brightness writes. Used when no light driver is
// configured, which is only useful for bench-testing the link.
type darkOutput struct{}

func (darkOutput) Set(int, float64) {}

// Daemon is the gate control loop: it merges trigger edges, link messages
// and elapsed time into animation transitions, one tick at a time. All
// state below is owned by the loop goroutine.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger
	hw     Hardware

	engine   *animation.Engine
	monitor  *trigger.Monitor
	protocol *link.Protocol

	lastTick  time.Time
	localDial bool // current cycle was dialed from this gate
	sentClose bool // close already announced for this cycle
}

// NewDaemon creates a gate daemon. Configuration anomalies are repaired
// with defaults rather than rejected; the only hard error is a linked role
// without a link transport.
func NewDaemon(cfg *Config, logger *slog.Logger, hw Hardware) (*Daemon, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.normalize()

	if cfg.Role != RoleStandalone && hw.Link == nil {
		return nil, errors.Errorf("role %q requires a link transport", cfg.Role)
	}
	if cfg.Role == RoleStandalone && hw.Link != nil {
		return nil, errors.New("standalone role cannot take a link transport")
	}

	out := hw.Lights
	if out == nil {
		logger.Warn("no light driver configured, running dark")
		out = darkOutput{}
	}

	var rng *rand.Rand
	if cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	d := &Daemon{
		cfg:     cfg,
		logger:  logger,
		hw:      hw,
		engine:  animation.New(out, cfg.Chevrons, cfg.LockOrder, cfg.Animation.Params(), rng),
		monitor: trigger.NewMonitor(time.Duration(cfg.Trigger.Debounce)),
	}

	if hw.Link != nil {
		reconnect := cfg.Role == RoleResponder
		d.protocol = link.NewProtocol(hw.Link, logger, reconnect,
			time.Duration(cfg.Link.ReconnectInterval))
	}

	return d, nil
}

// Run starts the control loop. It blocks until the given context is
// canceled.
func (d *Daemon) Run(ctx context.Context) error {
	errg, ctx := errgroup.WithContext(ctx)

	if d.hw.Link != nil {
		errg.Go(func() error {
			<-ctx.Done()
			d.logger.Debug("closing link transport")
			if err := d.hw.Link.Close(); err != nil {
				d.logger.Debug("failed to close link transport", "error", err)
			}
			return ctx.Err()
		})

		if d.cfg.Role == RoleInitiator {
			// The initiator's radio module advertises on its own; all we do
			// is open the port once, off the loop.
			go func() {
				if err := d.hw.Link.Connect(ctx); err != nil {
					d.logger.Warn("failed to open link", "error", err)
				}
			}()
		}
	}

	errg.Go(func() error {
		return d.loop(ctx)
	})

	return errg.Wait()
}

func (d *Daemon) loop(ctx context.Context) error {
	d.logger.Info("gate ready",
		"role", d.cfg.Role,
		"chevrons", d.cfg.Chevrons)
	d.engine.StartSweep()

	ticker := time.NewTicker(time.Duration(d.cfg.PollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			d.tick(ctx, now)
			d.flush()
		}
	}
}

// tick runs one iteration of the control loop. Within a tick, trigger
// edges are handled before link messages, which are handled before the
// time-based advance, so a local transition always wins over a stale
// remote message arriving in the same tick.
func (d *Daemon) tick(ctx context.Context, now time.Time) {
	if d.lastTick.IsZero() {
		d.lastTick = now
	}
	delta := now.Sub(d.lastTick)
	d.lastTick = now

	raw := d.monitor.Active()
	if d.hw.Trigger != nil {
		v, err := d.hw.Trigger.Sample()
		if err != nil {
			// A stuck or failed sensor is bounded by the hard wormhole
			// timeout; keep the last stable state.
			d.logger.Debug("trigger sample failed", "error", err)
		} else {
			raw = v
		}
	}
	if edge := d.monitor.Observe(raw, now); edge == trigger.EdgePressed {
		d.handlePress()
	}

	if d.protocol != nil {
		for _, m := range d.protocol.Drain() {
			d.handleMessage(m)
		}
	}

	d.engine.SetTriggerActive(d.monitor.Active())
	d.engine.Advance(delta)

	d.maybeAnnounceClose()
	if d.engine.Idle() {
		d.localDial = false
		d.sentClose = false
	}

	if d.protocol != nil {
		d.protocol.Tick(ctx, now)
	}
}

// handlePress reacts to a debounced press edge. Any gate's switch may
// originate a dial, whatever its link role; a press while the wormhole is
// open is the manual override that closes it without waiting out the
// release delay.
func (d *Daemon) handlePress() {
	switch d.engine.Phase() {
	case animation.PhaseIdle:
		d.logger.Info("dialing")
		d.engine.StartDial()
		d.localDial = true
		d.sentClose = false
		if d.protocol != nil {
			d.protocol.Send(gatewire.MessageOpen)
		}
	case animation.PhaseWormhole:
		d.logger.Info("force-closing wormhole")
		d.engine.Close()
	default:
		// Mid-dial presses are ignored; the debounced monitor already
		// filters bounce, so this is a deliberate second press.
	}
}

// handleMessage reacts to a decoded link message. Messages that do not
// apply to the current phase are ignored, not errors.
func (d *Daemon) handleMessage(m gatewire.Message) {
	switch m {
	case gatewire.MessageOpen:
		if !d.engine.Idle() {
			d.logger.Debug("ignoring open, gate busy", "phase", d.engine.Phase())
			return
		}
		d.logger.Info("incoming wormhole")
		d.localDial = false
		d.engine.StartIncoming()

	case gatewire.MessageClose:
		if d.engine.Idle() {
			d.logger.Debug("ignoring close, gate idle")
			return
		}
		d.logger.Info("remote gate closed the wormhole")
		d.engine.Close()
	}
}

// maybeAnnounceClose sends CLOSE to the remote gate exactly once per
// locally dialed cycle, whichever close condition fired (release delay,
// manual override or the hard timeout).
func (d *Daemon) maybeAnnounceClose() {
	if d.protocol == nil || !d.localDial || d.sentClose {
		return
	}
	if d.engine.Phase() == animation.PhaseClosing {
		d.protocol.Send(gatewire.MessageClose)
		d.sentClose = true
	}
}

func (d *Daemon) flush() {
	f, ok := d.hw.Lights.(light.Flusher)
	if !ok {
		return
	}
	if err := f.Flush(); err != nil {
		d.logger.Warn("failed to flush lights", "error", err)
	}
}

package stargate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"libdb.so/stargate/internal/animation"
)

type fakeSampler struct {
	active bool
}

func (s *fakeSampler) Sample() (bool, error) { return s.active, nil }

type fakeOutput struct {
	levels [9]float64
}

func (o *fakeOutput) Set(i int, level float64) { o.levels[i] = level }

type fakeLink struct {
	mu        sync.Mutex
	connected bool
	sent      []byte
	recv      chan byte
}

func newFakeLink() *fakeLink {
	return &fakeLink{connected: true, recv: make(chan byte, 16)}
}

func (l *fakeLink) Connect(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	return nil
}

func (l *fakeLink) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) Send(b byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sent = append(l.sent, b)
	return nil
}

func (l *fakeLink) Receive() <-chan byte { return l.recv }
func (l *fakeLink) Close() error         { return nil }

func (l *fakeLink) count(b byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, s := range l.sent {
		if s == b {
			n++
		}
	}
	return n
}

func (l *fakeLink) sentBytes() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.sent...)
}

// harness drives a daemon with synthetic time, one tick call per step,
// exactly the way the control loop would.
type harness struct {
	t       *testing.T
	d       *Daemon
	sampler *fakeSampler
	link    *fakeLink

	now  time.Time
	tick time.Duration
}

func testConfig(role Role) *Config {
	return &Config{
		Role:         role,
		Chevrons:     9,
		Seed:         1,
		PollInterval: Duration(5 * time.Millisecond),
		Trigger:      TriggerConfig{Debounce: Duration(10 * time.Millisecond)},
		Animation: AnimationConfig{
			RotationMin:        Duration(60 * time.Millisecond),
			RotationMax:        Duration(80 * time.Millisecond),
			RotationStep:       Duration(20 * time.Millisecond),
			LockFlashOn:        Duration(10 * time.Millisecond),
			LockFlashOff:       Duration(10 * time.Millisecond),
			MasterFlashOn:      Duration(10 * time.Millisecond),
			MasterFlashOff:     Duration(10 * time.Millisecond),
			IncomingStep:       Duration(10 * time.Millisecond),
			KawooshDuration:    Duration(100 * time.Millisecond),
			KawooshOn:          Duration(10 * time.Millisecond),
			KawooshOff:         Duration(10 * time.Millisecond),
			WormholeTimeout:    Duration(5 * time.Second),
			WormholeMinOpen:    Duration(500 * time.Millisecond),
			WormholeCloseDelay: Duration(100 * time.Millisecond),
			CloseFade:          Duration(50 * time.Millisecond),
			SweepStep:          Duration(10 * time.Millisecond),
		},
	}
}

func newHarness(t *testing.T, role Role) *harness {
	t.Helper()

	var lk *fakeLink
	if role != RoleStandalone {
		lk = newFakeLink()
	}
	sampler := &fakeSampler{}

	hw := Hardware{
		Lights:  &fakeOutput{},
		Trigger: sampler,
	}
	if lk != nil {
		hw.Link = lk
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d, err := NewDaemon(testConfig(role), logger, hw)
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}

	h := &harness{
		t:       t,
		d:       d,
		sampler: sampler,
		link:    lk,
		now:     time.Unix(1000, 0),
		tick:    5 * time.Millisecond,
	}
	h.step(1) // first tick primes the monitor and the clock
	return h
}

func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.now = h.now.Add(h.tick)
		h.d.tick(context.Background(), h.now)
	}
}

func (h *harness) stepUntil(limit time.Duration, pred func() bool) {
	h.t.Helper()
	for elapsed := time.Duration(0); elapsed < limit; elapsed += h.tick {
		if pred() {
			return
		}
		h.step(1)
	}
	h.t.Fatalf("condition not reached within %v, phase %s", limit, h.d.engine.Phase())
}

// press holds the trigger long enough for the debounced edge to fire.
func (h *harness) press() {
	h.sampler.active = true
	h.step(4)
}

func (h *harness) release() {
	h.sampler.active = false
	h.step(4)
}

func (h *harness) dialToWormhole() {
	h.t.Helper()
	h.press()
	if h.d.engine.Phase() != animation.PhaseRotating {
		h.t.Fatalf("after press: phase %s, want rotating", h.d.engine.Phase())
	}
	h.stepUntil(30*time.Second, func() bool {
		return h.d.engine.Phase() == animation.PhaseWormhole
	})
}

func TestPressDialsAndAnnouncesOpen(t *testing.T) {
	h := newHarness(t, RoleInitiator)

	h.press()
	if h.d.engine.Phase() != animation.PhaseRotating {
		t.Fatalf("phase = %s, want rotating", h.d.engine.Phase())
	}
	// The OPEN announcement goes out in the same tick as the dial start.
	if got := h.link.sentBytes(); len(got) != 1 || got[0] != 0x01 {
		t.Fatalf("sent = %v, want [0x01]", got)
	}
}

func TestResponderSwitchMayDialToo(t *testing.T) {
	h := newHarness(t, RoleResponder)

	h.press()
	if h.d.engine.Phase() != animation.PhaseRotating {
		t.Fatalf("phase = %s, want rotating", h.d.engine.Phase())
	}
	if h.link.count(0x01) != 1 {
		t.Fatalf("sent = %v, want one OPEN", h.link.sentBytes())
	}
}

func TestRemoteOpenStartsIncoming(t *testing.T) {
	h := newHarness(t, RoleResponder)

	h.link.recv <- 0x01
	h.step(1)

	if h.d.engine.Phase() != animation.PhaseLocking {
		t.Fatalf("phase = %s, want locking", h.d.engine.Phase())
	}
	if !h.d.engine.Incoming() {
		t.Fatal("engine not marked incoming")
	}

	// An incoming wormhole never announces anything back.
	if len(h.link.sentBytes()) != 0 {
		t.Fatalf("sent = %v, want nothing", h.link.sentBytes())
	}
}

func TestRemoteOpenIgnoredWhileBusy(t *testing.T) {
	h := newHarness(t, RoleInitiator)

	h.press()
	phase := h.d.engine.Phase()

	h.link.recv <- 0x01
	h.step(1)

	if h.d.engine.Incoming() {
		t.Fatal("busy gate hijacked by remote open")
	}
	if got := h.d.engine.Phase(); got != phase && got != animation.PhaseLocking {
		t.Fatalf("phase = %s after ignored open", got)
	}
}

func TestRemoteCloseShutsWormhole(t *testing.T) {
	h := newHarness(t, RoleResponder)

	h.link.recv <- 0x01
	h.stepUntil(10*time.Second, func() bool {
		return h.d.engine.Phase() == animation.PhaseWormhole
	})

	h.link.recv <- 0x02
	h.step(1)

	if h.d.engine.Phase() != animation.PhaseClosing {
		t.Fatalf("phase = %s, want closing", h.d.engine.Phase())
	}
	h.stepUntil(time.Second, h.d.engine.Idle)

	// The receiving side must not echo a CLOSE of its own.
	if h.link.count(0x02) != 0 {
		t.Fatalf("sent = %v, want no CLOSE", h.link.sentBytes())
	}
}

func TestRemoteCloseIgnoredWhileIdle(t *testing.T) {
	h := newHarness(t, RoleResponder)

	h.link.recv <- 0x02
	h.step(1)

	if !h.d.engine.Idle() {
		t.Fatalf("phase = %s, want idle", h.d.engine.Phase())
	}
}

func TestReleaseClosesAndAnnouncesOnce(t *testing.T) {
	h := newHarness(t, RoleInitiator)

	h.dialToWormhole()

	// Hold past the minimum open window, then let go.
	h.step(int(600 * time.Millisecond / h.tick))
	h.release()

	h.stepUntil(time.Second, func() bool {
		return h.d.engine.Phase() == animation.PhaseClosing
	})
	if h.link.count(0x02) != 1 {
		t.Fatalf("sent = %v, want exactly one CLOSE", h.link.sentBytes())
	}

	h.stepUntil(time.Second, h.d.engine.Idle)
	if h.link.count(0x02) != 1 {
		t.Fatalf("sent = %v after idle, want still one CLOSE", h.link.sentBytes())
	}
}

func TestSecondPressForceCloses(t *testing.T) {
	h := newHarness(t, RoleStandalone)

	h.dialToWormhole()

	// Release and press again well before the minimum open window is up;
	// the press is the manual override.
	h.release()
	h.press()

	if h.d.engine.Phase() != animation.PhaseClosing {
		t.Fatalf("phase = %s, want closing", h.d.engine.Phase())
	}
	h.stepUntil(time.Second, h.d.engine.Idle)
}

func TestStandaloneFullCycle(t *testing.T) {
	h := newHarness(t, RoleStandalone)

	h.dialToWormhole()
	h.step(int(600 * time.Millisecond / h.tick))
	h.release()
	h.stepUntil(time.Second, h.d.engine.Idle)

	// A fresh press must start a brand new dial.
	h.press()
	if h.d.engine.Phase() != animation.PhaseRotating {
		t.Fatalf("redial: phase = %s, want rotating", h.d.engine.Phase())
	}
}

func TestLinkedRoleRequiresTransport(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewDaemon(testConfig(RoleInitiator), logger, Hardware{})
	if err == nil {
		t.Fatal("initiator without transport accepted")
	}

	hw := Hardware{Link: newFakeLink()}
	_, err = NewDaemon(testConfig(RoleStandalone), logger, hw)
	if err == nil {
		t.Fatal("standalone with transport accepted")
	}
}

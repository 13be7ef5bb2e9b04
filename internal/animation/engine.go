// Package animation implements the gate's phase state machine: the chevron
// dialing sequence, the kawoosh, the stable wormhole and its close-out.
//
// The engine is purely tick-driven. Nothing in it sleeps or blocks; callers
// advance it by the wall-clock delta since the last tick and it renders the
// resulting brightness levels through a light.Levels buffer. Commands
// (StartDial, StartIncoming, Close) are no-ops when the current phase does
// not accept them.
package animation

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"libdb.so/stargate/internal/light"
)

// Phase is the current stage of the gate animation.
type Phase int

const (
	// PhaseIdle means the gate is dark and waiting for a command.
	PhaseIdle Phase = iota
	// PhaseSweep is the brief power-on sweep played at startup.
	PhaseSweep
	// PhaseRotating means the scan light is sweeping toward the next
	// chevron in the lock order.
	PhaseRotating
	// PhaseLocking means a chevron is flashing before locking solid.
	PhaseLocking
	// PhaseKawoosh is the vortex burst after the final chevron locks.
	PhaseKawoosh
	// PhaseWormhole is the sustained breathing pulse of an open wormhole.
	PhaseWormhole
	// PhaseClosing fades every chevron out before returning to idle.
	PhaseClosing
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSweep:
		return "sweep"
	case PhaseRotating:
		return "rotating"
	case PhaseLocking:
		return "locking"
	case PhaseKawoosh:
		return "kawoosh"
	case PhaseWormhole:
		return "wormhole"
	case PhaseClosing:
		return "closing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Params holds every timing and brightness knob of the animation. Zero or
// negative durations and zero counts are replaced with the defaults below,
// so a partially filled Params is always safe to use.
type Params struct {
	// Gate rotation between chevron locks.
	RotationMin  time.Duration // shortest rotation window
	RotationMax  time.Duration // longest rotation window
	RotationStep time.Duration // base scan-light advance interval
	ScanLevel    float64       // brightness of the scanning sweep

	// Chevron lock flashes.
	LockFlashes    int
	LockFlashOn    time.Duration
	LockFlashOff   time.Duration
	LockLevel      float64 // steady brightness once locked
	MasterFlashes  int     // the final chevron gets extra drama
	MasterFlashOn  time.Duration
	MasterFlashOff time.Duration

	// Incoming (destination gate) rapid lock chain.
	IncomingStep time.Duration

	// Kawoosh vortex after the final lock.
	KawooshDuration time.Duration
	KawooshOn       time.Duration
	KawooshOff      time.Duration

	// Stable wormhole.
	WormholeTimeout    time.Duration // hard safety cut-off
	WormholeMinOpen    time.Duration // releases before this are deferred
	WormholeCloseDelay time.Duration // release must persist this long
	WormholePeriod     time.Duration // one full breathe cycle
	WormholeMinLevel   float64
	WormholeMaxLevel   float64

	// Close-out fade.
	CloseFade time.Duration

	// Startup sweep.
	SweepStep  time.Duration
	SweepLevel float64
}

// DefaultParams returns the stock gate timings.
func DefaultParams() Params {
	return Params{
		RotationMin:  800 * time.Millisecond,
		RotationMax:  2 * time.Second,
		RotationStep: 90 * time.Millisecond,
		ScanLevel:    0.18,

		LockFlashes:    3,
		LockFlashOn:    80 * time.Millisecond,
		LockFlashOff:   55 * time.Millisecond,
		LockLevel:      1.0,
		MasterFlashes:  5,
		MasterFlashOn:  100 * time.Millisecond,
		MasterFlashOff: 60 * time.Millisecond,

		IncomingStep: 60 * time.Millisecond,

		KawooshDuration: 2800 * time.Millisecond,
		KawooshOn:       35 * time.Millisecond,
		KawooshOff:      25 * time.Millisecond,

		WormholeTimeout:    38 * time.Second,
		WormholeMinOpen:    5 * time.Second,
		WormholeCloseDelay: 2 * time.Second,
		WormholePeriod:     2200 * time.Millisecond,
		WormholeMinLevel:   0.35,
		WormholeMaxLevel:   1.0,

		CloseFade: 600 * time.Millisecond,

		SweepStep:  60 * time.Millisecond,
		SweepLevel: 0.6,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	durs := []struct {
		dst *time.Duration
		def time.Duration
	}{
		{&p.RotationMin, def.RotationMin},
		{&p.RotationMax, def.RotationMax},
		{&p.RotationStep, def.RotationStep},
		{&p.LockFlashOn, def.LockFlashOn},
		{&p.LockFlashOff, def.LockFlashOff},
		{&p.MasterFlashOn, def.MasterFlashOn},
		{&p.MasterFlashOff, def.MasterFlashOff},
		{&p.IncomingStep, def.IncomingStep},
		{&p.KawooshDuration, def.KawooshDuration},
		{&p.KawooshOn, def.KawooshOn},
		{&p.KawooshOff, def.KawooshOff},
		{&p.WormholeTimeout, def.WormholeTimeout},
		{&p.WormholeMinOpen, def.WormholeMinOpen},
		{&p.WormholeCloseDelay, def.WormholeCloseDelay},
		{&p.WormholePeriod, def.WormholePeriod},
		{&p.CloseFade, def.CloseFade},
		{&p.SweepStep, def.SweepStep},
	}
	for _, d := range durs {
		if *d.dst <= 0 {
			*d.dst = d.def
		}
	}
	if p.RotationMax < p.RotationMin {
		p.RotationMax = p.RotationMin
	}
	if p.LockFlashes <= 0 {
		p.LockFlashes = def.LockFlashes
	}
	if p.MasterFlashes <= 0 {
		p.MasterFlashes = def.MasterFlashes
	}
	if p.ScanLevel <= 0 || p.ScanLevel > 1 {
		p.ScanLevel = def.ScanLevel
	}
	if p.LockLevel <= 0 || p.LockLevel > 1 {
		p.LockLevel = def.LockLevel
	}
	if p.WormholeMinLevel <= 0 || p.WormholeMinLevel > 1 {
		p.WormholeMinLevel = def.WormholeMinLevel
	}
	if p.WormholeMaxLevel <= 0 || p.WormholeMaxLevel > 1 {
		p.WormholeMaxLevel = def.WormholeMaxLevel
	}
	if p.WormholeMaxLevel < p.WormholeMinLevel {
		p.WormholeMaxLevel = p.WormholeMinLevel
	}
	if p.SweepLevel <= 0 || p.SweepLevel > 1 {
		p.SweepLevel = def.SweepLevel
	}
	return p
}

// DefaultLockOrder returns the fallback lock order for n chevrons: a plain
// ring walk that saves chevron 0, the master, for last.
func DefaultLockOrder(n int) []int {
	order := make([]int, 0, n)
	for i := 1; i < n; i++ {
		order = append(order, i)
	}
	return append(order, 0)
}

// validOrder reports whether order is a permutation of [0, n).
func validOrder(order []int, n int) bool {
	if len(order) != n {
		return false
	}
	seen := make([]bool, n)
	for _, i := range order {
		if i < 0 || i >= n || seen[i] {
			return false
		}
		seen[i] = true
	}
	return true
}

type lockStage int

const (
	lockFlashOn lockStage = iota
	lockFlashOff
	lockHold
)

// Engine is the gate animation state machine.
type Engine struct {
	params Params
	order  []int
	levels *light.Levels
	rand   *rand.Rand

	phase    Phase
	locked   []bool
	lockSeq  []int // chevrons locked so far, in lock order
	step     int   // next index into order
	incoming bool

	// rotating
	rotDuration time.Duration
	rotElapsed  time.Duration
	rotTimer    time.Duration
	scanDir     int
	scanPos     int
	prevScan    int

	// locking
	lockStage   lockStage
	stageTimer  time.Duration
	flashesLeft int

	// kawoosh
	kawooshElapsed time.Duration
	kawooshTimer   time.Duration
	kawooshLit     bool

	// wormhole
	wormElapsed   time.Duration
	releaseFor    time.Duration
	releasing     bool
	triggerActive bool

	// closing
	closeElapsed time.Duration
	closeFrom    []float64

	// sweep
	sweepTimer time.Duration
	sweepPos   int
	sweepBack  bool
}

// New creates an engine for count chevrons rendering into out. An invalid
// lock order (wrong length, duplicates, out-of-range entries) falls back to
// DefaultLockOrder; the last entry of the order is the master chevron. A nil
// rng gets a time-seeded source.
func New(out light.Output, count int, order []int, params Params, rng *rand.Rand) *Engine {
	if count <= 0 {
		count = 9
	}
	if !validOrder(order, count) {
		order = DefaultLockOrder(count)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		params:  params.withDefaults(),
		order:   append([]int(nil), order...),
		levels:  light.NewLevels(out, count),
		rand:    rng,
		locked:  make([]bool, count),
		scanDir: 1,
	}
}

// Phase returns the current animation phase.
func (e *Engine) Phase() Phase { return e.phase }

// Idle reports whether the gate is dark and accepting commands.
func (e *Engine) Idle() bool { return e.phase == PhaseIdle }

// Locked reports whether the chevron at the given index is locked.
func (e *Engine) Locked(i int) bool { return e.locked[i] }

// LockedCount returns the number of chevrons locked this cycle.
func (e *Engine) LockedCount() int { return len(e.lockSeq) }

// Master returns the index of the master chevron (last in the lock order).
func (e *Engine) Master() int { return e.order[len(e.order)-1] }

// Incoming reports whether the current cycle is an incoming wormhole.
func (e *Engine) Incoming() bool { return e.incoming }

// SetTriggerActive feeds the debounced trigger state into the wormhole
// close gating. Only outgoing (dialed) cycles consult it.
func (e *Engine) SetTriggerActive(active bool) { e.triggerActive = active }

// StartSweep plays the power-on sweep. Only valid from idle.
func (e *Engine) StartSweep() {
	if e.phase != PhaseIdle {
		return
	}
	e.levels.Fill(0)
	e.sweepTimer = 0
	e.sweepPos = 0
	e.sweepBack = false
	e.phase = PhaseSweep
}

// StartDial begins an outgoing dialing sequence. Only valid from idle.
func (e *Engine) StartDial() {
	if e.phase != PhaseIdle {
		return
	}
	e.resetCycle(false)
	e.enterRotating()
}

// StartIncoming begins the incoming (destination gate) sequence: a rapid
// chevron lock chain straight into the kawoosh. Only valid from idle.
func (e *Engine) StartIncoming() {
	if e.phase != PhaseIdle {
		return
	}
	e.resetCycle(true)
	e.enterLocking()
}

// Close forces the gate to start closing, regardless of pending close
// delays. It applies from any phase past idle and is idempotent while
// already closing.
func (e *Engine) Close() {
	if e.phase == PhaseIdle || e.phase == PhaseSweep || e.phase == PhaseClosing {
		return
	}
	e.enterClosing()
}

// Advance moves the animation forward by the elapsed time since the last
// tick. A zero or negative delta changes nothing.
func (e *Engine) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	switch e.phase {
	case PhaseSweep:
		e.advanceSweep(d)
	case PhaseRotating:
		e.advanceRotating(d)
	case PhaseLocking:
		e.advanceLocking(d)
	case PhaseKawoosh:
		e.advanceKawoosh(d)
	case PhaseWormhole:
		e.advanceWormhole(d)
	case PhaseClosing:
		e.advanceClosing(d)
	}
}

// ── cycle bookkeeping ──

func (e *Engine) resetCycle(incoming bool) {
	for i := range e.locked {
		e.locked[i] = false
	}
	e.lockSeq = e.lockSeq[:0]
	e.step = 0
	e.scanDir = 1
	e.incoming = incoming
	e.releasing = false
	e.releaseFor = 0
	e.levels.Fill(0)
}

func (e *Engine) enterIdle() {
	for i := range e.locked {
		e.locked[i] = false
	}
	e.lockSeq = e.lockSeq[:0]
	e.levels.Fill(0)
	e.phase = PhaseIdle
}

// ── sweep ──

func (e *Engine) advanceSweep(d time.Duration) {
	e.sweepTimer += d
	for e.sweepTimer >= e.params.SweepStep {
		e.sweepTimer -= e.params.SweepStep
		if !e.sweepBack {
			if e.sweepPos < e.levels.Count() {
				e.levels.Set(e.sweepPos, e.params.SweepLevel)
				e.sweepPos++
			} else {
				e.sweepBack = true
				e.sweepPos--
			}
		} else {
			if e.sweepPos >= 0 {
				e.levels.Set(e.sweepPos, 0)
				e.sweepPos--
			} else {
				e.enterIdle()
				return
			}
		}
	}
}

// ── rotating ──

func (e *Engine) unlockedAt(pos int) int {
	unlocked := make([]int, 0, e.levels.Count())
	for i := 0; i < e.levels.Count(); i++ {
		if !e.locked[i] {
			unlocked = append(unlocked, i)
		}
	}
	pos %= len(unlocked)
	if pos < 0 {
		pos += len(unlocked)
	}
	return unlocked[pos]
}

func (e *Engine) enterRotating() {
	span := e.params.RotationMax - e.params.RotationMin
	e.rotDuration = e.params.RotationMin
	if span > 0 {
		e.rotDuration += time.Duration(e.rand.Int63n(int64(span) + 1))
	}
	e.rotElapsed = 0
	e.rotTimer = 0
	e.scanPos = 0
	e.prevScan = -1
	e.phase = PhaseRotating
}

func (e *Engine) advanceRotating(d time.Duration) {
	e.rotElapsed += d
	e.rotTimer += d

	target := e.order[e.step]
	for e.rotTimer >= e.scanInterval() {
		e.rotTimer -= e.scanInterval()

		if e.prevScan >= 0 && !e.locked[e.prevScan] {
			e.levels.Set(e.prevScan, 0)
		}
		cur := e.unlockedAt(e.scanPos)
		e.levels.Set(cur, e.params.ScanLevel)
		e.prevScan = cur
		e.scanPos += e.scanDir

		// Past the rotation window the ring keeps creeping until the scan
		// light lands on the target chevron, then it settles.
		if e.rotElapsed >= e.rotDuration && cur == target {
			for i := 0; i < e.levels.Count(); i++ {
				if !e.locked[i] {
					e.levels.Set(i, 0)
				}
			}
			e.enterLocking()
			return
		}
	}
}

// scanInterval stretches the scan step as the rotation window runs out,
// slowing the ring into its stop.
func (e *Engine) scanInterval() time.Duration {
	frac := float64(e.rotElapsed) / float64(e.rotDuration)
	if frac > 1 {
		frac = 1
	}
	return e.params.RotationStep + time.Duration(frac*frac*float64(e.params.RotationStep))
}

// ── locking ──

func (e *Engine) lockTimings() (flashes int, on, off time.Duration) {
	if e.incoming {
		return 1, e.params.IncomingStep, e.params.IncomingStep / 2
	}
	if e.step == len(e.order)-1 {
		return e.params.MasterFlashes, e.params.MasterFlashOn, e.params.MasterFlashOff
	}
	return e.params.LockFlashes, e.params.LockFlashOn, e.params.LockFlashOff
}

func (e *Engine) enterLocking() {
	flashes, _, _ := e.lockTimings()
	e.flashesLeft = flashes
	e.lockStage = lockFlashOn
	e.stageTimer = 0
	e.levels.Set(e.order[e.step], e.params.LockLevel)
	e.phase = PhaseLocking
}

func (e *Engine) advanceLocking(d time.Duration) {
	e.stageTimer += d
	target := e.order[e.step]
	_, on, off := e.lockTimings()

	for {
		switch e.lockStage {
		case lockFlashOn:
			if e.stageTimer < on {
				return
			}
			e.stageTimer -= on
			e.levels.Set(target, 0)
			e.lockStage = lockFlashOff

		case lockFlashOff:
			if e.stageTimer < off {
				return
			}
			e.stageTimer -= off
			e.flashesLeft--
			if e.flashesLeft > 0 {
				e.levels.Set(target, e.params.LockLevel)
				e.lockStage = lockFlashOn
				continue
			}
			// Flash sequence complete: lock solid.
			e.levels.Set(target, e.params.LockLevel)
			e.locked[target] = true
			e.lockSeq = append(e.lockSeq, target)
			e.lockStage = lockHold

		case lockHold:
			var hold time.Duration
			if e.incoming {
				hold = e.params.IncomingStep
			}
			if e.stageTimer < hold {
				return
			}
			e.stageTimer -= hold
			e.step++
			if e.step >= len(e.order) {
				e.enterKawoosh()
				return
			}
			if e.incoming {
				e.enterLocking()
				return
			}
			e.scanDir = -e.scanDir
			e.enterRotating()
			return
		}
	}
}

// ── kawoosh ──

func (e *Engine) enterKawoosh() {
	e.kawooshElapsed = 0
	e.kawooshTimer = 0
	e.kawooshLit = false
	e.phase = PhaseKawoosh
}

func (e *Engine) advanceKawoosh(d time.Duration) {
	e.kawooshElapsed += d
	e.kawooshTimer += d

	if e.kawooshElapsed >= e.params.KawooshDuration {
		// Vortex settles: locked chevrons come back solid.
		for i := 0; i < e.levels.Count(); i++ {
			if e.locked[i] {
				e.levels.Set(i, e.params.LockLevel)
			} else {
				e.levels.Set(i, 0)
			}
		}
		e.wormElapsed = 0
		e.releasing = false
		e.releaseFor = 0
		e.phase = PhaseWormhole
		return
	}

	for {
		if e.kawooshLit {
			if e.kawooshTimer < e.params.KawooshOn {
				return
			}
			e.kawooshTimer -= e.params.KawooshOn
			e.levels.Fill(0)
			e.kawooshLit = false
		} else {
			if e.kawooshTimer < e.params.KawooshOff {
				return
			}
			e.kawooshTimer -= e.params.KawooshOff
			for i := 0; i < e.levels.Count(); i++ {
				e.levels.Set(i, 0.5+0.5*e.rand.Float64())
			}
			e.kawooshLit = true
		}
	}
}

// ── wormhole ──

func (e *Engine) advanceWormhole(d time.Duration) {
	e.wormElapsed += d

	// Hard safety cut-off, regardless of trigger or link state.
	if e.wormElapsed >= e.params.WormholeTimeout {
		e.enterClosing()
		return
	}

	// Trigger-release gating applies only to cycles we dialed ourselves.
	// Releases before the minimum open time are deferred: the close-delay
	// clock starts counting only once the minimum has elapsed.
	if !e.incoming && e.wormElapsed >= e.params.WormholeMinOpen {
		if e.triggerActive {
			e.releasing = false
			e.releaseFor = 0
		} else {
			if !e.releasing {
				e.releasing = true
				e.releaseFor = 0
			}
			e.releaseFor += d
			if e.releaseFor >= e.params.WormholeCloseDelay {
				e.enterClosing()
				return
			}
		}
	}

	// Raised-cosine breathing on the locked chevrons.
	phase := float64(e.wormElapsed%e.params.WormholePeriod) / float64(e.params.WormholePeriod)
	s := 0.5 - 0.5*math.Cos(2*math.Pi*phase)
	level := e.params.WormholeMinLevel + s*(e.params.WormholeMaxLevel-e.params.WormholeMinLevel)
	e.levels.FillSubset(e.lockSeq, level)
}

// ── closing ──

func (e *Engine) enterClosing() {
	e.closeElapsed = 0
	e.closeFrom = e.levels.Snapshot()
	e.phase = PhaseClosing
}

func (e *Engine) advanceClosing(d time.Duration) {
	e.closeElapsed += d
	if e.closeElapsed >= e.params.CloseFade {
		e.enterIdle()
		return
	}
	frac := float64(e.closeElapsed) / float64(e.params.CloseFade)
	for i, from := range e.closeFrom {
		e.levels.Set(i, from*(1-frac))
	}
}

// Package engine runs the keying loop: it owns the keyer registry, feeds
// paddle events and clock ticks to the selected keyer, and serves control
// requests from other goroutines.
//
// Keyers are not safe for concurrent use, so every keyer call happens on
// the goroutine running Run (or Replay). Select, SetWPM and Status post a
// command to that goroutine and wait for it to be applied.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"keyerd/internal/keyer"
	"keyerd/internal/logging"
	"keyerd/internal/metrics"
	"keyerd/internal/paddle"
)

var (
	// ErrStopped is returned by control calls once Run has returned.
	ErrStopped = errors.New("engine stopped")
	// ErrInvalidKeyer is returned for selectors outside 0..9.
	ErrInvalidKeyer = errors.New("invalid keyer number")
	// ErrInvalidSpeed is returned for speeds below 1 wpm.
	ErrInvalidSpeed = errors.New("invalid speed")
)

// epochMs is the engine time at start. It is non-zero so that a pulse armed
// by a paddle press fires on the very first tick.
const epochMs = 1

// DefaultTickInterval is used when Config.TickInterval is zero.
const DefaultTickInterval = time.Millisecond

// Config holds engine settings.
type Config struct {
	// Keyer is the initial selector, 0 for passthrough.
	Keyer int
	// WPM is the initial speed.
	WPM int
	// TickInterval is the keyer clock period.
	TickInterval time.Duration

	Logger  *logging.Logger
	Metrics *metrics.KeyerdMetrics

	// OnChange is called on the engine goroutine when Run starts and after
	// every keyer or speed change.
	OnChange func(Status)
}

// Status describes the engine state.
type Status struct {
	Number       int    `json:"number"`
	Name         string `json:"name"`
	WPM          int    `json:"wpm"`
	DitMs        int    `json:"dit_ms"`
	Transmitting bool   `json:"transmitting"`
	NowMs        int64  `json:"now_ms"`
}

type command struct {
	fn   func(e *Engine) error
	done chan error
}

// Engine drives one keyer at a time.
type Engine struct {
	cfg      Config
	log      *logging.Logger
	registry *keyer.Registry
	output   keyer.Transmitter

	current *keyer.Keyer
	number  int
	wpm     int

	// passthrough state, used when number is 0
	pressed [3]bool
	passTx  bool

	nowMs   atomic.Int64
	cmds    chan command
	running atomic.Bool
	stopped chan struct{}
}

// New creates an engine with the initial keyer and speed from cfg. No
// output is bound until SetOutput.
func New(cfg Config) (*Engine, error) {
	if err := checkKeyer(cfg.Keyer); err != nil {
		return nil, err
	}
	if err := checkSpeed(cfg.WPM); err != nil {
		return nil, err
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	e := &Engine{
		cfg:      cfg,
		log:      cfg.Logger.WithComponent("engine"),
		registry: keyer.NewRegistry(),
		output:   nopOutput{},
		wpm:      cfg.WPM,
		cmds:     make(chan command),
		stopped:  make(chan struct{}),
	}
	e.nowMs.Store(epochMs)
	e.selectKeyer(cfg.Keyer)
	return e, nil
}

func checkKeyer(n int) error {
	if n < keyer.NoKeyer || n > keyer.KindCount {
		return fmt.Errorf("%w: %d", ErrInvalidKeyer, n)
	}
	return nil
}

func checkSpeed(wpm int) error {
	if wpm < 1 {
		return fmt.Errorf("%w: %d wpm", ErrInvalidSpeed, wpm)
	}
	return nil
}

// SetOutput binds the transmitter. It must be called before Run.
func (e *Engine) SetOutput(t keyer.Transmitter) {
	if t == nil {
		t = nopOutput{}
	}
	e.output = t
	if e.current != nil {
		e.current.SetOutput(t)
	}
}

// NowMs returns the engine time in milliseconds. It implements the clock
// used by output sinks.
func (e *Engine) NowMs() int64 {
	return e.nowMs.Load()
}

// Run processes paddle events, ticks and control commands until ctx is
// cancelled. A closed events channel is not an error; the engine keeps
// ticking so that queued elements complete. On return every relay is open.
func (e *Engine) Run(ctx context.Context, events <-chan paddle.Event) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer close(e.stopped)
	defer e.shutdown()

	start := time.Now()
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	e.log.Info("engine started",
		"keyer", keyer.Name(e.number), "wpm", e.wpm, "tick", e.cfg.TickInterval)
	e.changed()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				events = nil
				e.inputClosed()
				continue
			}
			e.setNow(epochMs + time.Since(start).Milliseconds())
			e.key(ev)
			e.tick()

		case t := <-ticker.C:
			e.setNow(epochMs + time.Since(start).Milliseconds())
			if e.cfg.Metrics != nil {
				e.cfg.Metrics.TickLag.ObserveDuration(time.Since(t))
			}
			e.tick()

		case cmd := <-e.cmds:
			cmd.done <- cmd.fn(e)
		}
	}
}

// inputClosed releases every paddle, since a closed source will never send
// the release edges. Elements already under way still complete.
func (e *Engine) inputClosed() {
	e.log.Warn("paddle source closed, releasing held paddles")
	if e.current == nil {
		e.endPassthrough()
		return
	}
	for _, p := range []keyer.Paddle{keyer.Dit, keyer.Dah, keyer.Straight} {
		e.current.Key(p, false)
	}
}

func (e *Engine) shutdown() {
	if e.current != nil {
		e.current.Release()
	}
	e.endPassthrough()
	e.log.Info("engine stopped")
}

func (e *Engine) setNow(ms int64) {
	if ms > e.nowMs.Load() {
		e.nowMs.Store(ms)
	}
}

func (e *Engine) key(ev paddle.Event) {
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.PaddleEventsTotal.Inc()
	}
	if e.current != nil {
		e.current.Key(ev.Paddle, ev.Pressed)
		return
	}
	e.passthrough(ev)
}

func (e *Engine) tick() {
	if e.current != nil {
		e.current.Tick(e.nowMs.Load())
	}
}

// passthrough follows the OR of all pressed paddles with BeginTx/EndTx.
func (e *Engine) passthrough(ev paddle.Event) {
	if ev.Paddle < keyer.Dit || ev.Paddle > keyer.Straight {
		return
	}
	e.pressed[ev.Paddle] = ev.Pressed

	down := false
	for _, p := range e.pressed {
		down = down || p
	}
	if down == e.passTx {
		return
	}
	e.passTx = down
	if down {
		e.output.BeginTx()
	} else {
		e.output.EndTx()
	}
}

func (e *Engine) endPassthrough() {
	e.pressed = [3]bool{}
	if e.passTx {
		e.passTx = false
		e.output.EndTx()
	}
}

// selectKeyer releases the old keyer, binds the new one and reapplies the
// configured speed, since Reset restores the default dit length.
func (e *Engine) selectKeyer(n int) {
	if e.current != nil {
		e.current.Release()
	}
	e.endPassthrough()

	e.number = n
	e.current = e.registry.GetKeyerByNumber(n, e.output)
	if e.current != nil {
		e.current.SetDitDuration(keyer.DitDuration(e.wpm))
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.CurrentKeyer.Set(int64(n))
		e.cfg.Metrics.WPM.Set(int64(e.wpm))
	}
}

func (e *Engine) setWPM(wpm int) {
	e.wpm = wpm
	if e.current != nil {
		e.current.SetDitDuration(keyer.DitDuration(wpm))
	}
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.WPM.Set(int64(wpm))
	}
}

func (e *Engine) status() Status {
	s := Status{
		Number: e.number,
		Name:   keyer.Name(e.number),
		WPM:    e.wpm,
		DitMs:  keyer.DitDuration(e.wpm),
		NowMs:  e.nowMs.Load(),
	}
	if e.current != nil {
		s.Transmitting = e.current.Transmitting()
	} else {
		s.Transmitting = e.passTx
	}
	return s
}

func (e *Engine) changed() {
	if e.cfg.OnChange != nil {
		e.cfg.OnChange(e.status())
	}
}

// do runs fn on the engine goroutine.
func (e *Engine) do(ctx context.Context, fn func(e *Engine) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case e.cmds <- cmd:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Select switches to keyer n, 0 meaning passthrough. Selecting the current
// keyer again resets it.
func (e *Engine) Select(ctx context.Context, n int) error {
	if err := checkKeyer(n); err != nil {
		return err
	}
	return e.do(ctx, func(e *Engine) error {
		prev := e.number
		e.selectKeyer(n)
		if e.cfg.Metrics != nil {
			e.cfg.Metrics.KeyerSwitchesTotal.Inc()
		}
		e.log.Info("keyer selected", "from", keyer.Name(prev), "to", keyer.Name(n))
		e.changed()
		return nil
	})
}

// SetWPM changes the sending speed of the current and future keyers.
func (e *Engine) SetWPM(ctx context.Context, wpm int) error {
	if err := checkSpeed(wpm); err != nil {
		return err
	}
	return e.do(ctx, func(e *Engine) error {
		if wpm == e.wpm {
			return nil
		}
		e.setWPM(wpm)
		e.log.Info("speed changed", "wpm", wpm, "dit_ms", keyer.DitDuration(wpm))
		e.changed()
		return nil
	})
}

// Status returns the current state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	var s Status
	err := e.do(ctx, func(e *Engine) error {
		s = e.status()
		return nil
	})
	return s, err
}

// Keyers lists the selectable keyers, passthrough first.
func Keyers() []KeyerInfo {
	out := []KeyerInfo{{Number: keyer.NoKeyer, Name: keyer.Name(keyer.NoKeyer)}}
	for n := 1; n <= keyer.KindCount; n++ {
		out = append(out, KeyerInfo{Number: n, Name: keyer.Name(n)})
	}
	return out
}

// KeyerInfo names a selector.
type KeyerInfo struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

type nopOutput struct{}

func (nopOutput) BeginTx()                {}
func (nopOutput) EndTx()                  {}
func (nopOutput) BeginRelay(keyer.Paddle) {}
func (nopOutput) EndRelay(keyer.Paddle)   {}

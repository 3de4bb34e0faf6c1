package engine

import (
	"errors"
	"time"

	"keyerd/internal/paddle"
)

// Replay feeds events to the engine on a simulated clock, one tick per
// millisecond, and keeps ticking for tail after the last event so trailing
// elements complete. It must not be called while Run is active.
//
// Events at the same millisecond are applied in order before that
// millisecond's tick, as Run does for live input.
func (e *Engine) Replay(events []paddle.Event, tail time.Duration) error {
	if e.running.Load() {
		return errors.New("replay while engine is running")
	}

	e.changed()
	base := e.nowMs.Load()
	end := base + paddle.Duration(events).Milliseconds() + tail.Milliseconds()

	i := 0
	for now := base; now <= end; now++ {
		e.nowMs.Store(now)
		for i < len(events) && base+events[i].At.Milliseconds() <= now {
			e.key(events[i])
			i++
		}
		e.tick()
	}
	return nil
}

// SelectNow switches keyer synchronously. Like Replay it is for callers
// that do not run the engine loop.
func (e *Engine) SelectNow(n int) error {
	if e.running.Load() {
		return errors.New("engine is running, use Select")
	}
	if err := checkKeyer(n); err != nil {
		return err
	}
	e.selectKeyer(n)
	e.changed()
	return nil
}

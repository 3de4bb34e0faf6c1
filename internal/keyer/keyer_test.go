package keyer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

type edge struct {
	at    int64
	relay Paddle
	on    bool
}

// recorder is a Transmitter that timestamps every relay edge with the
// clock of the harness driving it.
type recorder struct {
	now      *int64
	edges    []edge
	begins   int
	ends     int
	txActive bool
}

func (r *recorder) BeginTx() {
	r.begins++
	r.txActive = true
}

func (r *recorder) EndTx() {
	r.ends++
	r.txActive = false
}

func (r *recorder) BeginRelay(p Paddle) { r.edges = append(r.edges, edge{*r.now, p, true}) }
func (r *recorder) EndRelay(p Paddle)   { r.edges = append(r.edges, edge{*r.now, p, false}) }

// elements returns the asserted paddles in order.
func (r *recorder) elements() []Paddle {
	var out []Paddle
	for _, e := range r.edges {
		if e.on {
			out = append(out, e.relay)
		}
	}
	return out
}

type harness struct {
	t   *testing.T
	k   *Keyer
	rec *recorder
	now int64
}

const t0 = 1000

func newHarness(t *testing.T, kind Kind) *harness {
	t.Helper()
	h := &harness{t: t, now: t0}
	h.rec = &recorder{now: &h.now}
	h.k = New(kind)
	h.k.SetOutput(h.rec)
	return h
}

func (h *harness) key(p Paddle, pressed bool) {
	h.k.Key(p, pressed)
}

// runUntil ticks every millisecond from the current time up to and
// including until.
func (h *harness) runUntil(until int64) {
	for ; h.now <= until; h.now++ {
		h.k.Tick(h.now)
	}
	h.now = until
}

// =============================================================================
// Shared contract
// =============================================================================

func TestNewIsReset(t *testing.T) {
	for kind := KindStraight; kind <= KindKeyahead; kind++ {
		t.Run(kind.String(), func(t *testing.T) {
			k := New(kind)
			assert.Equal(t, DefaultDitDuration, k.DitDuration())
			assert.True(t, k.Idle())
			assert.False(t, k.Transmitting())
		})
	}
}

func TestResetThenTickIsNoop(t *testing.T) {
	for kind := KindStraight; kind <= KindKeyahead; kind++ {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t, kind)
			h.key(Dit, true)
			h.key(Dah, true)
			h.runUntil(t0 + 50)

			h.k.Reset()
			assert.False(t, h.k.Transmitting())
			assert.True(t, h.k.Idle())

			before := len(h.rec.edges)
			for _, at := range []int64{0, 1, t0 + 51, t0 + 10_000} {
				h.k.Tick(at)
			}
			assert.Len(t, h.rec.edges, before)
			assert.False(t, h.k.Transmitting())
			assert.False(t, h.rec.txActive)
		})
	}
}

func TestResetRestoresDefaultSpeed(t *testing.T) {
	k := New(KindIambicB)
	k.SetDitDuration(60)
	require.Equal(t, 60, k.DitDuration())

	k.Release()
	assert.Equal(t, DefaultDitDuration, k.DitDuration())
}

func TestSetDitDurationIgnoresNonPositive(t *testing.T) {
	k := New(KindIambic)
	k.SetDitDuration(0)
	k.SetDitDuration(-5)
	assert.Equal(t, DefaultDitDuration, k.DitDuration())
}

func TestReleaseOpensStuckRelay(t *testing.T) {
	h := newHarness(t, KindStraight)
	h.key(Dah, true)
	require.True(t, h.k.Transmitting())

	h.k.Release()
	assert.False(t, h.k.Transmitting())
	assert.Equal(t, 1, h.rec.ends)
	assert.Equal(t, edge{t0, Dah, false}, h.rec.edges[len(h.rec.edges)-1])
}

func TestArmedPulseNeedsNonZeroClock(t *testing.T) {
	h := newHarness(t, KindElectronicBug)
	h.key(Dit, true)
	h.k.Tick(0)
	assert.False(t, h.k.Transmitting())
	h.k.Tick(1)
	assert.True(t, h.k.Transmitting())
}

// =============================================================================
// Timing
// =============================================================================

func TestElementTiming(t *testing.T) {
	tests := []struct {
		name  string
		p     Paddle
		dit   int
		width int64
	}{
		{"dit default", Dit, 100, 100},
		{"dah default", Dah, 100, 300},
		{"dit 20wpm", Dit, 60, 60},
		{"dah 20wpm", Dah, 60, 180},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, KindElectronicBug)
			h.k.SetDitDuration(tt.dit)
			h.key(tt.p, true)
			h.runUntil(t0 + tt.width + int64(tt.dit) + 5)

			require.GreaterOrEqual(t, len(h.rec.edges), 3)
			assert.Equal(t, edge{t0, tt.p, true}, h.rec.edges[0])
			assert.Equal(t, edge{t0 + tt.width, tt.p, false}, h.rec.edges[1])
			assert.Equal(t, edge{t0 + tt.width + int64(tt.dit), tt.p, true}, h.rec.edges[2])
		})
	}
}

func TestExtraTicksDoNotShiftEdges(t *testing.T) {
	sparse := newHarness(t, KindIambic)
	dense := newHarness(t, KindIambic)
	for _, h := range []*harness{sparse, dense} {
		h.key(Dit, true)
		h.key(Dah, true)
	}

	// sparse only ticks exactly at the deadlines it has already seen
	dense.runUntil(t0 + 2000)
	for _, e := range dense.rec.edges {
		sparse.now = e.at
		sparse.k.Tick(e.at)
		sparse.k.Tick(e.at)
	}

	assert.Equal(t, dense.rec.edges, sparse.rec.edges)
}

func TestTickBeforeDeadlineDoesNothing(t *testing.T) {
	h := newHarness(t, KindElectronicBug)
	h.key(Dah, true)
	h.k.Tick(t0)
	require.True(t, h.k.RelayClosed(Dah))

	h.k.Tick(t0 + 299)
	assert.True(t, h.k.RelayClosed(Dah))
	h.k.Tick(t0 + 300)
	assert.False(t, h.k.RelayClosed(Dah))
}

// =============================================================================
// Variants
// =============================================================================

func TestStraightMultiRelay(t *testing.T) {
	h := newHarness(t, KindStraight)

	h.key(Dit, true)
	assert.True(t, h.k.Transmitting())
	h.key(Dah, true)
	assert.True(t, h.k.RelayClosed(Dit))
	assert.True(t, h.k.RelayClosed(Dah))

	h.key(Dit, false)
	assert.True(t, h.k.Transmitting())
	assert.True(t, h.rec.txActive)

	h.key(Dah, false)
	assert.False(t, h.k.Transmitting())
	assert.False(t, h.rec.txActive)

	assert.Equal(t, 1, h.rec.begins)
	assert.Equal(t, 1, h.rec.ends)
	assert.True(t, h.k.Idle())
}

func TestStraightKeyPassesThroughEveryKeyer(t *testing.T) {
	for kind := KindStraight; kind <= KindKeyahead; kind++ {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t, kind)
			h.key(Straight, true)
			assert.True(t, h.k.RelayClosed(Dit))
			h.key(Straight, false)
			assert.False(t, h.k.Transmitting())
			assert.True(t, h.k.Idle())
		})
	}
}

func TestStraightLeverOrsWithDitPaddle(t *testing.T) {
	h := newHarness(t, KindStraight)

	h.key(Dit, true)
	h.key(Straight, true)
	h.key(Straight, false)
	assert.True(t, h.k.Transmitting(), "dit paddle still holds the relay")
	assert.True(t, h.rec.txActive)

	h.key(Dit, false)
	assert.False(t, h.k.Transmitting())
	assert.Equal(t, []edge{{t0, Dit, true}, {t0, Dit, false}}, h.rec.edges)
	assert.Equal(t, 1, h.rec.begins)
	assert.Equal(t, 1, h.rec.ends)
}

func TestStraightHoldSurvivesKeyerDit(t *testing.T) {
	h := newHarness(t, KindIambic)
	h.k.SetDitDuration(60)

	h.key(Straight, true)
	h.key(Dit, true)
	h.runUntil(t0 + 30)
	h.key(Dit, false)
	h.runUntil(t0 + 300)

	assert.True(t, h.k.RelayClosed(Dit), "the timed dit ended but the lever is down")
	assert.True(t, h.k.Transmitting())
	assert.True(t, h.k.Idle())

	h.now = t0 + 400
	h.key(Straight, false)
	assert.False(t, h.k.Transmitting())
	assert.Equal(t, []edge{{t0, Dit, true}, {t0 + 400, Dit, false}}, h.rec.edges)
}

func TestStraightReleaseKeepsPulsedDit(t *testing.T) {
	h := newHarness(t, KindIambic)
	h.k.SetDitDuration(60)

	h.key(Dit, true)
	h.runUntil(t0 + 10)
	h.key(Straight, true)
	h.runUntil(t0 + 20)
	h.key(Straight, false)
	h.key(Dit, false)
	assert.True(t, h.k.RelayClosed(Dit), "lever release must not cut the keyer's dit short")

	h.runUntil(t0 + 300)
	assert.False(t, h.k.Transmitting())
	assert.Equal(t, []edge{{t0, Dit, true}, {t0 + 60, Dit, false}}, h.rec.edges)
}

func TestBugRepeatsDitsAndPassesDah(t *testing.T) {
	h := newHarness(t, KindBug)

	h.key(Dit, true)
	h.runUntil(t0 + 450)
	assert.Equal(t, []Paddle{Dit, Dit, Dit}, h.rec.elements())

	h.key(Dit, false)
	h.runUntil(t0 + 800)
	assert.True(t, h.k.Idle())

	h.now = t0 + 900
	h.key(Dah, true)
	assert.True(t, h.k.RelayClosed(Dah))
	h.runUntil(t0 + 2000)
	assert.True(t, h.k.RelayClosed(Dah), "dah is held manually, not timed")
	h.key(Dah, false)
	assert.False(t, h.k.Transmitting())
}

func TestElectronicBugRepeatsLastPressed(t *testing.T) {
	h := newHarness(t, KindElectronicBug)

	h.key(Dah, true)
	h.runUntil(t0 + 750)
	h.key(Dit, true)
	h.runUntil(t0 + 1150)
	assert.Equal(t, []Paddle{Dah, Dah, Dit, Dit}, h.rec.elements())

	// releasing dit falls back to the still-held dah
	h.key(Dit, false)
	h.runUntil(t0 + 1700)
	assert.Equal(t, Dah, h.rec.elements()[len(h.rec.elements())-1])
}

func TestIambicSqueezeAlternates(t *testing.T) {
	h := newHarness(t, KindIambic)
	h.key(Dit, true)
	h.key(Dah, true)
	h.runUntil(t0 + 10_000)

	els := h.rec.elements()
	require.Greater(t, len(els), 20)
	for i := 1; i < len(els); i++ {
		assert.NotEqual(t, els[i-1], els[i], "element %d repeats", i)
	}
}

func TestIambicNeverOverlapsElements(t *testing.T) {
	for _, kind := range []Kind{KindIambic, KindIambicA, KindIambicB} {
		t.Run(kind.String(), func(t *testing.T) {
			h := newHarness(t, kind)
			h.key(Dit, true)
			h.key(Dah, true)
			h.runUntil(t0 + 3000)

			for i, e := range h.rec.edges {
				wantOn := i%2 == 0
				assert.Equal(t, wantOn, e.on, "edge %d", i)
				if i > 0 && e.on {
					assert.Equal(t, int64(DefaultDitDuration), e.at-h.rec.edges[i-1].at, "gap before edge %d", i)
				}
			}
		})
	}
}

func TestIambicAMemoryPreemptsAlternation(t *testing.T) {
	h := newHarness(t, KindIambicA)
	h.key(Dit, true)
	h.key(Dah, true)
	h.runUntil(t0 + 2000)

	els := h.rec.elements()
	require.GreaterOrEqual(t, len(els), 4)
	assert.Equal(t, []Paddle{Dit, Dit, Dah, Dit}, els[:4])
}

func TestIambicBTrailingElement(t *testing.T) {
	h := newHarness(t, KindIambicB)
	h.key(Dit, true)
	h.key(Dah, true)

	h.runUntil(t0 + 100)
	require.Equal(t, []Paddle{Dit}, h.rec.elements())
	require.False(t, h.k.Transmitting(), "dit has just completed")

	h.key(Dit, false)
	h.key(Dah, false)
	h.runUntil(t0 + 3000)

	assert.Equal(t, []Paddle{Dit, Dah}, h.rec.elements())
	assert.True(t, h.k.Idle())
	assert.False(t, h.k.Transmitting())
}

func TestIambicBSqueezeAlternates(t *testing.T) {
	h := newHarness(t, KindIambicB)
	h.key(Dah, true)
	h.key(Dit, true)
	h.runUntil(t0 + 5000)

	els := h.rec.elements()
	require.Greater(t, len(els), 8)
	assert.Equal(t, Dah, els[0])
	for i := 1; i < len(els); i++ {
		assert.NotEqual(t, els[i-1], els[i])
	}
}

func TestKeyaheadPreservesOrder(t *testing.T) {
	h := newHarness(t, KindKeyahead)

	taps := []Paddle{Dit, Dit, Dah, Dit}
	for i, p := range taps {
		h.runUntil(t0 + int64(i*10))
		h.key(p, true)
		h.runUntil(t0 + int64(i*10) + 5)
		h.key(p, false)
	}
	h.runUntil(t0 + 3000)

	assert.Equal(t, taps, h.rec.elements())
	assert.True(t, h.k.Idle())
}

func TestKeyaheadDropsOldestWhenFull(t *testing.T) {
	h := newHarness(t, KindKeyahead)

	// seven taps before the first tick: only the newest five survive
	taps := []Paddle{Dah, Dah, Dit, Dah, Dit, Dit, Dah}
	for _, p := range taps {
		h.key(p, true)
		h.key(p, false)
	}
	h.runUntil(t0 + 5000)

	assert.Equal(t, taps[2:], h.rec.elements())
}

func TestUltimaticDeduplicates(t *testing.T) {
	h := newHarness(t, KindUltimatic)
	h.key(Dit, true)
	h.key(Dit, false)
	h.key(Dit, true)
	h.key(Dit, false)
	h.runUntil(t0 + 1000)

	assert.Equal(t, []Paddle{Dit}, h.rec.elements())
}

func TestUltimaticLastPressedWins(t *testing.T) {
	h := newHarness(t, KindUltimatic)
	h.key(Dit, true)
	h.key(Dah, true)
	h.runUntil(t0 + 900)

	// queued order first, then the last pressed paddle repeats
	assert.Equal(t, []Paddle{Dit, Dah, Dah}, h.rec.elements())
}

func TestSingleDotDahPriority(t *testing.T) {
	h := newHarness(t, KindSingleDot)
	h.key(Dit, true)
	h.key(Dah, true)
	h.runUntil(t0 + 900)

	// one remembered dit, then dah wins while both are held
	assert.Equal(t, []Paddle{Dit, Dah, Dah}, h.rec.elements())
}

func TestSingleDotHeldDitRepeats(t *testing.T) {
	h := newHarness(t, KindSingleDot)
	h.key(Dit, true)
	h.runUntil(t0 + 450)
	assert.Equal(t, []Paddle{Dit, Dit, Dit}, h.rec.elements())
}

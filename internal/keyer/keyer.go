package keyer

// Kind selects a keying behaviour. Its value is also the registry selector.
type Kind int

const (
	KindStraight Kind = iota + 1
	KindBug
	KindElectronicBug
	KindSingleDot
	KindUltimatic
	KindIambic
	KindIambicA
	KindIambicB
	KindKeyahead
)

// KindCount is the number of keying behaviours.
const KindCount = 9

var kindNames = [...]string{
	KindStraight:      "straight",
	KindBug:           "bug",
	KindElectronicBug: "electronic bug",
	KindSingleDot:     "single dot",
	KindUltimatic:     "ultimatic",
	KindIambic:        "iambic",
	KindIambicA:       "iambic a",
	KindIambicB:       "iambic b",
	KindKeyahead:      "keyahead",
}

// Valid reports whether k names one of the nine behaviours.
func (k Kind) Valid() bool {
	return k >= KindStraight && k <= KindKeyahead
}

// String returns the human-readable keyer name.
func (k Kind) String() string {
	if !k.Valid() {
		return "none"
	}
	return kindNames[k]
}

// armed is the deadline used when a pulse is requested from Key, which has
// no clock: the next Tick with a non-zero time fires it.
const armed int64 = 1

// Keyer holds the state of one keying behaviour.
//
// The zero value is not usable; create keyers with New or through a
// Registry.
type Keyer struct {
	kind   Kind
	output Transmitter

	ditDuration int
	txRelays    [relayCount]bool
	keyPressed  [relayCount]bool

	// drive is what the keyer itself asks of each relay. The straight
	// lever is ORed onto relay Dit, so txRelays[Dit] is
	// drive[Dit] || straightDown.
	drive        [relayCount]bool
	straightDown bool

	// nextPulseAt is the absolute deadline of the next transition in ms.
	// Zero means idle.
	nextPulseAt int64
	current     Paddle
	nextRepeat  Paddle

	queue PaddleQueue
	ahead aheadBuffer
}

// New creates a reset keyer of the given kind with no output bound.
func New(kind Kind) *Keyer {
	k := &Keyer{kind: kind, output: nopTransmitter{}}
	k.Reset()
	return k
}

// Kind returns the keying behaviour.
func (k *Keyer) Kind() Kind {
	return k.kind
}

// Name returns the keyer's display name.
func (k *Keyer) Name() string {
	return k.kind.String()
}

// SetOutput binds the transmitter driven by this keyer. A nil transmitter
// discards all output.
func (k *Keyer) SetOutput(t Transmitter) {
	if t == nil {
		t = nopTransmitter{}
	}
	k.output = t
}

// Reset releases any closed relay, forgets all paddle memory and restores
// the default dit duration.
//
// The configured speed is lost; callers that want a non-default speed must
// call SetDitDuration again.
func (k *Keyer) Reset() {
	k.straightDown = false
	for r := range k.txRelays {
		k.tx(Paddle(r), false)
	}
	k.ditDuration = DefaultDitDuration
	k.keyPressed = [relayCount]bool{}
	k.nextPulseAt = 0
	k.current = None
	k.nextRepeat = None
	k.queue.Clear()
	k.ahead.clear()
}

// Release is called when the keyer is deselected. It is Reset, so no relay
// is left closed.
func (k *Keyer) Release() {
	k.Reset()
}

// SetDitDuration sets the dit length in milliseconds. Non-positive values
// are ignored.
func (k *Keyer) SetDitDuration(ms int) {
	if ms <= 0 {
		return
	}
	k.ditDuration = ms
}

// DitDuration returns the dit length in milliseconds.
func (k *Keyer) DitDuration() int {
	return k.ditDuration
}

// Transmitting reports whether any relay is closed.
func (k *Keyer) Transmitting() bool {
	for _, closed := range k.txRelays {
		if closed {
			return true
		}
	}
	return false
}

// RelayClosed reports whether the given relay is closed.
func (k *Keyer) RelayClosed(relay Paddle) bool {
	if relay != Dit && relay != Dah {
		return false
	}
	return k.txRelays[relay]
}

// Idle reports whether no pulse is scheduled.
func (k *Keyer) Idle() bool {
	return k.nextPulseAt == 0
}

// Key records a paddle edge. The straight lever closes relay Dit in every
// keyer, in parallel with whatever the keyer drives on that relay.
func (k *Keyer) Key(p Paddle, pressed bool) {
	if p == Straight {
		k.straightDown = pressed
		k.apply(Dit)
		return
	}
	if p != Dit && p != Dah {
		return
	}

	switch k.kind {
	case KindStraight:
		k.tx(p, pressed)
	case KindBug:
		k.keyPressed[p] = pressed
		if p == Dit {
			k.arm()
		} else {
			k.tx(Dah, pressed)
		}
	default:
		k.remember(p, pressed)
		k.repeatKey(p, pressed)
	}
}

// Tick advances the keyer to nowMs. At most one relay transition happens
// per call, and only once the scheduled deadline has passed.
func (k *Keyer) Tick(nowMs int64) {
	if k.nextPulseAt == 0 || nowMs < k.nextPulseAt {
		return
	}
	k.pulse(nowMs)
}

// pulse performs one transition: release the asserted element and wait one
// dit, or assert the element chosen by the policy for its length.
func (k *Keyer) pulse(nowMs int64) {
	if k.current != None {
		k.tx(k.current, false)
		k.current = None
		k.nextPulseAt = nowMs + int64(k.ditDuration)
		return
	}

	next := k.nextTx()
	if next == None {
		k.nextPulseAt = 0
		return
	}
	k.tx(next, true)
	k.current = next
	k.nextPulseAt = nowMs + int64(k.elementDuration(next))
}

func (k *Keyer) elementDuration(p Paddle) int {
	if p == Dah {
		return 3 * k.ditDuration
	}
	return k.ditDuration
}

// arm schedules a pulse unless one is already pending.
func (k *Keyer) arm() {
	if k.nextPulseAt == 0 {
		k.nextPulseAt = armed
	}
}

// tx sets the keyer's drive of one relay.
func (k *Keyer) tx(relay Paddle, closed bool) {
	k.drive[relay] = closed
	k.apply(relay)
}

// apply brings a relay in line with the keyer drive and the straight lever,
// notifying the output of relay and aggregate edges.
func (k *Keyer) apply(relay Paddle) {
	closed := k.drive[relay] || (relay == Dit && k.straightDown)
	if k.txRelays[relay] == closed {
		return
	}
	was := k.Transmitting()
	k.txRelays[relay] = closed

	if closed {
		if !was {
			k.output.BeginTx()
		}
		k.output.BeginRelay(relay)
		return
	}
	k.output.EndRelay(relay)
	if !k.Transmitting() {
		k.output.EndTx()
	}
}

package keyer

// Paddle identifies a paddle lever, and doubles as the relay index for
// Dit and Dah.
type Paddle int

const (
	// None is returned when no paddle applies (empty queue, idle policy).
	None Paddle = -1
	// Dit is the dot lever and relay 0.
	Dit Paddle = 0
	// Dah is the dash lever and relay 1.
	Dah Paddle = 1
	// Straight is a straight key wired in parallel with the paddles.
	Straight Paddle = 2
)

// String returns the lowercase name of the paddle.
func (p Paddle) String() string {
	switch p {
	case Dit:
		return "dit"
	case Dah:
		return "dah"
	case Straight:
		return "straight"
	default:
		return "none"
	}
}

// ParsePaddle returns the paddle named s, or None.
func ParsePaddle(s string) Paddle {
	switch s {
	case "dit", "dot":
		return Dit
	case "dah", "dash":
		return Dah
	case "straight":
		return Straight
	default:
		return None
	}
}

// relayCount is the number of output relays a keyer drives.
const relayCount = 2

// Transmitter is the sink a keyer drives.
//
// BeginRelay/EndRelay fire on every edge of an individual relay.
// BeginTx/EndTx fire when the logical OR of all relays changes, so a
// single-channel consumer (sidetone, PTT) can ignore the per-relay calls.
type Transmitter interface {
	BeginTx()
	EndTx()
	BeginRelay(relay Paddle)
	EndRelay(relay Paddle)
}

// nopTransmitter is bound until SetOutput is called.
type nopTransmitter struct{}

func (nopTransmitter) BeginTx()          {}
func (nopTransmitter) EndTx()            {}
func (nopTransmitter) BeginRelay(Paddle) {}
func (nopTransmitter) EndRelay(Paddle)   {}

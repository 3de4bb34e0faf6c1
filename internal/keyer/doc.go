// Package keyer implements the Morse keying engine for keyerd.
//
// A Keyer turns paddle edges (Key) and elapsed time (Tick) into a timed
// two-element transmit signal delivered to a Transmitter. Nine keying
// behaviours are available:
//
//   - 1 straight: paddles close relays directly
//   - 2 bug: dit paddle repeats dits, dah is manual
//   - 3 electronic bug: whichever paddle is held repeats
//   - 4 single dot: queued dits, dah wins over an unqueued dit
//   - 5 ultimatic: presses queued in order, last held repeats
//   - 6 iambic: squeeze alternates dit and dah
//   - 7 iambic a: iambic with dit memory
//   - 8 iambic b: iambic with full memory and a trailing element
//   - 9 keyahead: every press buffered in arrival order
//
// Selector 0 means "no keyer": the caller passes paddles straight through.
//
// # Timing
//
// All self-completing keyers share one pulse algorithm. When a pulse is
// due, an asserted element is released and followed by a gap of one dit;
// otherwise the keyer's policy picks the next paddle and asserts it for one
// dit (Dit) or three dits (Dah). Only the policy differs between variants.
//
// Keyers are not safe for concurrent use. Key and Tick must be called from
// a single control loop, with Tick polled more often than once per dit.
package keyer

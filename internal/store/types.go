// Package store provides the SQLite element journal for keyerd.
package store

// Session is one run of the engine with a fixed keyer and speed. A keyer
// or speed change closes the current session and opens a new one.
type Session struct {
	ID        string
	Keyer     int
	WPM       int
	StartedNs int64
	EndedNs   *int64
}

// Element is one closed relay interval, in engine milliseconds.
type Element struct {
	ID        int64
	SessionID string
	Ordinal   int
	Paddle    string
	StartMs   int64
	EndMs     int64
}

// DurationMs returns how long the relay was closed.
func (e Element) DurationMs() int64 {
	return e.EndMs - e.StartMs
}

// SessionStats summarizes the elements of a session.
type SessionStats struct {
	SessionID string
	Elements  int
	ByPaddle  map[string]int
	KeyDownMs int64
	FirstMs   int64
	LastMs    int64
}

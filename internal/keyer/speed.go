package keyer

// DefaultDitDuration is the dit length in milliseconds after Reset.
const DefaultDitDuration = 100

// DitDuration returns the dit length in milliseconds for a speed in words
// per minute, using the 50-unit PARIS word.
func DitDuration(wpm int) int {
	if wpm < 1 {
		wpm = 1
	}
	return 60000 / (50 * wpm)
}

// WPM is the inverse of DitDuration, rounded down.
func WPM(ditMs int) int {
	if ditMs < 1 {
		ditMs = 1
	}
	return 60000 / (50 * ditMs)
}

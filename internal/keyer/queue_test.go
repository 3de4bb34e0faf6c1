package keyer

import "testing"

func TestPaddleQueueFIFO(t *testing.T) {
	var q PaddleQueue
	q.Add(Dah)
	q.Add(Dit)

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	for i, want := range []Paddle{Dah, Dit, None} {
		if got := q.Shift(); got != want {
			t.Errorf("Shift() #%d = %v, want %v", i, got, want)
		}
	}
}

func TestPaddleQueueDeduplicates(t *testing.T) {
	var q PaddleQueue
	q.Add(Dit)
	q.Add(Dit)
	q.Add(Dah)
	q.Add(Dit)

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	if got := q.Shift(); got != Dit {
		t.Errorf("first Shift() = %v, want dit", got)
	}
	if got := q.Shift(); got != Dah {
		t.Errorf("second Shift() = %v, want dah", got)
	}
}

func TestPaddleQueueDropsWhenFull(t *testing.T) {
	var q PaddleQueue
	for i := 0; i < QueueCapacity+3; i++ {
		q.Add(Paddle(i))
	}
	if q.Len() != QueueCapacity {
		t.Fatalf("Len() = %d, want %d", q.Len(), QueueCapacity)
	}
	for i := 0; i < QueueCapacity; i++ {
		if got := q.Shift(); got != Paddle(i) {
			t.Errorf("Shift() #%d = %v, want %v", i, got, Paddle(i))
		}
	}
	if got := q.Shift(); got != None {
		t.Errorf("Shift() on empty queue = %v, want none", got)
	}
}

func TestPaddleQueueClear(t *testing.T) {
	var q PaddleQueue
	q.Add(Dit)
	q.Clear()
	if q.Len() != 0 {
		t.Errorf("Len() after Clear = %d", q.Len())
	}
	if got := q.Shift(); got != None {
		t.Errorf("Shift() after Clear = %v, want none", got)
	}
}

func TestAheadBufferKeepsDuplicates(t *testing.T) {
	var b aheadBuffer
	b.push(Dit)
	b.push(Dit)
	b.push(Dah)

	for i, want := range []Paddle{Dit, Dit, Dah, None} {
		if got := b.shift(); got != want {
			t.Errorf("shift() #%d = %v, want %v", i, got, want)
		}
	}
}

func TestAheadBufferEvictsOldest(t *testing.T) {
	var b aheadBuffer
	for i := 0; i < QueueCapacity+2; i++ {
		b.push(Paddle(i % 2))
	}
	// pushed 0 1 0 1 0 1 0, oldest two evicted
	for i, want := range []Paddle{Dit, Dah, Dit, Dah, Dit, None} {
		if got := b.shift(); got != want {
			t.Errorf("shift() #%d = %v, want %v", i, got, want)
		}
	}
}

func TestSpeedConversion(t *testing.T) {
	tests := []struct {
		wpm int
		dit int
	}{
		{12, 100},
		{20, 60},
		{25, 48},
		{0, 1200},
	}
	for _, tt := range tests {
		if got := DitDuration(tt.wpm); got != tt.dit {
			t.Errorf("DitDuration(%d) = %d, want %d", tt.wpm, got, tt.dit)
		}
	}
	if got := WPM(60); got != 20 {
		t.Errorf("WPM(60) = %d, want 20", got)
	}
	if got := WPM(DefaultDitDuration); got != 12 {
		t.Errorf("WPM(default) = %d, want 12", got)
	}
}

package countdown

import (
	"testing"
	"time"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "zero", d: 0, want: "0:00:00"},
		{name: "seconds only", d: 42 * time.Second, want: "0:00:42"},
		{name: "minutes and seconds", d: 5*time.Minute + 9*time.Second, want: "0:05:09"},
		{name: "hours", d: 2*time.Hour + 3*time.Minute + 4*time.Second, want: "2:03:04"},
		{name: "just under a day", d: 23*time.Hour + 59*time.Minute + 59*time.Second, want: "23:59:59"},
		{name: "exactly a day", d: 24 * time.Hour, want: "24:00:00"},
		{name: "thirty hours capped", d: 30 * time.Hour, want: "24:00:00"},
		{name: "several days capped", d: 90 * time.Hour, want: "24:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatRemaining(tt.d); got != tt.want {
				t.Fatalf("FormatRemaining(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestObserveMonotonicSingleFire(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	now := start.Add(-5 * time.Second)

	var fires int
	e := NewEmitter(start, func() { fires++ })

	prev := time.Duration(1<<62 - 1)
	var atStart string
	for i := 0; i <= 8; i++ {
		rem, display := e.Observe(now)
		if rem > prev {
			t.Fatalf("remaining increased from %v to %v", prev, rem)
		}
		prev = rem
		if now.Equal(start) {
			atStart = display
		}
		now = now.Add(time.Second)
	}

	if atStart != "0:00:00" {
		t.Fatalf("display at start instant = %q, want 0:00:00", atStart)
	}
	if fires != 1 {
		t.Fatalf("ended fired %d times across the advance, want exactly 1", fires)
	}
}

func TestObserveRedundantZeroDoesNotRefire(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)

	var fires int
	e := NewEmitter(start, func() { fires++ })

	for i := 0; i < 5; i++ {
		e.Observe(start.Add(time.Duration(i) * time.Second))
	}
	if fires != 1 {
		t.Fatalf("ended fired %d times while remaining stayed 0, want 1", fires)
	}
}

func TestObserveRearmsOnFutureStart(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)

	var fires int
	e := NewEmitter(start, func() { fires++ })

	e.Observe(start) // fires
	if fires != 1 {
		t.Fatalf("fires = %d after first zero, want 1", fires)
	}

	// Descriptor rescheduled to a future start: the guard re-arms.
	e.SetStart(start.Add(time.Hour))
	if rem, _ := e.Observe(start); rem != time.Hour {
		t.Fatalf("remaining = %v after reschedule, want 1h", rem)
	}

	e.Observe(start.Add(time.Hour)) // second zero crossing
	if fires != 2 {
		t.Fatalf("fires = %d after re-armed crossing, want 2", fires)
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local)
	if got := Remaining(start, start.Add(time.Minute)); got != 0 {
		t.Fatalf("Remaining past start = %v, want 0", got)
	}
	if got := Remaining(start, start.Add(-90*time.Second)); got != 90*time.Second {
		t.Fatalf("Remaining = %v, want 90s", got)
	}
}

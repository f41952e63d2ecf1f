// Package countdown computes and formats the remaining time until an
// upcoming exam opens, and raises a one-shot "ended" signal at the moment
// the countdown hits zero.
package countdown

import (
	"fmt"
	"time"
)

// displayHourCap caps the rendered hour component. Exams more than a day
// away show "24:00:00" rather than the true hour count; the literal behavior
// is kept for client compatibility.
const displayHourCap = 24

// Remaining returns max(0, start - now).
func Remaining(start, now time.Time) time.Duration {
	d := start.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders a duration as H:MM:SS with the hour component
// capped at 24.
func FormatRemaining(d time.Duration) string {
	hours := int(d / time.Hour)
	if hours >= displayHourCap {
		return "24:00:00"
	}
	minutes := int(d/time.Minute) % 60
	seconds := int(d/time.Second) % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

// Emitter tracks one upcoming exam's countdown. Observe is fed successive
// clock readings; the ended callback fires exactly once per zero crossing
// even if readings keep arriving at zero, and re-arms when the start moves
// back into the future.
//
// An Emitter is driven by a single goroutine (the stream loop that owns it);
// it is not safe for concurrent use.
type Emitter struct {
	start   time.Time
	fired   bool
	onEnded func()
}

// NewEmitter creates an Emitter for an exam starting at start.
func NewEmitter(start time.Time, onEnded func()) *Emitter {
	return &Emitter{start: start, onEnded: onEnded}
}

// SetStart updates the exam's start instant (descriptor changed). A start
// moved into the future re-arms the ended signal on the next Observe.
func (e *Emitter) SetStart(start time.Time) {
	e.start = start
}

// Observe recomputes the countdown against now. Returns the remaining
// duration and its display form.
func (e *Emitter) Observe(now time.Time) (time.Duration, string) {
	rem := Remaining(e.start, now)

	if rem > 0 {
		e.fired = false
	} else if !e.fired {
		e.fired = true
		if e.onEnded != nil {
			e.onEnded()
		}
	}

	return rem, FormatRemaining(rem)
}

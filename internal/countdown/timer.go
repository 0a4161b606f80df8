// Package countdown implements the one-second countdown timers used by the
// password reset wizard.
package countdown

import (
	"fmt"
	"time"
)

// Timer counts down whole seconds from a fixed duration. It is not safe for
// concurrent use: the owner receives from C and calls Tick on the same
// goroutine that calls Start and Cancel.
type Timer struct {
	clock    Clock
	duration int

	remaining int
	ticker    Ticker
}

// New returns a stopped timer that will count down from seconds.
func New(clock Clock, seconds int) *Timer {
	if clock == nil {
		clock = RealClock()
	}
	return &Timer{clock: clock, duration: seconds}
}

// Start cancels any running countdown and starts a new one at the full duration.
func (t *Timer) Start() {
	t.Cancel()
	t.remaining = t.duration
	if t.duration <= 0 {
		return
	}
	t.ticker = t.clock.NewTicker(time.Second)
}

// Cancel stops the countdown. Remaining keeps its last value. Safe to call
// on a stopped timer.
func (t *Timer) Cancel() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	t.ticker = nil
}

// C returns the tick channel, or nil when the timer is not running so a
// select on it blocks forever.
func (t *Timer) C() <-chan time.Time {
	if t.ticker == nil {
		return nil
	}
	return t.ticker.Chan()
}

// Tick applies one elapsed second. zero is true exactly once per countdown,
// on the tick that reaches 0; the timer stops itself at that point.
func (t *Timer) Tick() (remaining int, zero bool) {
	if t.ticker == nil || t.remaining <= 0 {
		return t.remaining, false
	}
	t.remaining--
	if t.remaining == 0 {
		t.Cancel()
		return 0, true
	}
	return t.remaining, false
}

// Remaining returns the seconds left on the current or last countdown.
func (t *Timer) Remaining() int { return t.remaining }

// Running reports whether a countdown is in progress.
func (t *Timer) Running() bool { return t.ticker != nil }

// Duration returns the configured full duration in seconds.
func (t *Timer) Duration() int { return t.duration }

// FormatClock renders seconds as MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

package countdown

import "testing"

func TestTimer_StartSetsFullDuration(t *testing.T) {
	clock := NewFakeClock()
	tm := New(clock, 300)

	if tm.Running() {
		t.Fatal("new timer should not be running")
	}
	tm.Start()
	if !tm.Running() {
		t.Fatal("timer should be running after Start")
	}
	if tm.Remaining() != 300 {
		t.Errorf("Remaining = %d, want 300", tm.Remaining())
	}
	if tm.C() == nil {
		t.Error("C should be non-nil while running")
	}
}

func TestTimer_TickDecrementsAndFiresOnce(t *testing.T) {
	tm := New(NewFakeClock(), 3)
	tm.Start()

	fired := 0
	for i := 0; i < 5; i++ {
		if _, zero := tm.Tick(); zero {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("zero crossing fired %d times, want 1", fired)
	}
	if tm.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", tm.Remaining())
	}
	if tm.Running() {
		t.Error("timer should stop itself at zero")
	}
	if tm.C() != nil {
		t.Error("C should be nil once stopped")
	}
}

func TestTimer_TickReportsRemaining(t *testing.T) {
	tm := New(NewFakeClock(), 60)
	tm.Start()

	rem, zero := tm.Tick()
	if rem != 59 || zero {
		t.Errorf("Tick = (%d, %v), want (59, false)", rem, zero)
	}
}

func TestTimer_CancelIsIdempotent(t *testing.T) {
	clock := NewFakeClock()
	tm := New(clock, 10)
	tm.Start()
	tm.Tick()

	tm.Cancel()
	tm.Cancel()

	if tm.Running() {
		t.Error("timer should not be running after Cancel")
	}
	if tm.Remaining() != 9 {
		t.Errorf("Remaining = %d, want 9 (value kept after cancel)", tm.Remaining())
	}
	if rem, zero := tm.Tick(); rem != 9 || zero {
		t.Errorf("Tick on cancelled timer = (%d, %v), want (9, false)", rem, zero)
	}
	if clock.Active() != 0 {
		t.Errorf("Active tickers = %d, want 0", clock.Active())
	}
}

func TestTimer_RestartReplacesTicker(t *testing.T) {
	clock := NewFakeClock()
	tm := New(clock, 60)

	tm.Start()
	tm.Tick()
	tm.Tick()
	tm.Start()

	if clock.Active() != 1 {
		t.Errorf("Active tickers = %d, want 1 after restart", clock.Active())
	}
	if tm.Remaining() != 60 {
		t.Errorf("Remaining = %d, want 60 after restart", tm.Remaining())
	}
}

func TestTimer_RestartAfterZero(t *testing.T) {
	tm := New(NewFakeClock(), 1)
	tm.Start()
	if _, zero := tm.Tick(); !zero {
		t.Fatal("expected zero crossing on first tick")
	}

	tm.Start()
	if !tm.Running() || tm.Remaining() != 1 {
		t.Errorf("after restart Running=%v Remaining=%d, want true/1", tm.Running(), tm.Remaining())
	}
	if _, zero := tm.Tick(); !zero {
		t.Error("restarted countdown should fire its own zero crossing")
	}
}

func TestFakeClock_TickDeliversToLiveTickers(t *testing.T) {
	clock := NewFakeClock()
	a := clock.NewTicker(0)
	b := clock.NewTicker(0)
	b.Stop()

	got := make(chan struct{})
	go func() {
		<-a.Chan()
		close(got)
	}()
	clock.Tick()
	<-got

	if clock.Active() != 1 {
		t.Errorf("Active = %d, want 1", clock.Active())
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{300, "05:00"},
		{299, "04:59"},
		{61, "01:01"},
		{60, "01:00"},
		{9, "00:09"},
		{0, "00:00"},
		{-5, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

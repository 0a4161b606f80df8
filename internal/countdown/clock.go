package countdown

import (
	"sync"
	"time"
)

// Clock creates the tickers that drive timers. Tests swap in a FakeClock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// Ticker is the subset of *time.Ticker a Timer needs.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realClock struct{}

// RealClock returns a Clock backed by time.NewTicker.
func RealClock() Clock { return realClock{} }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	*time.Ticker
}

func (t realTicker) Chan() <-chan time.Time { return t.C }

// FakeClock hands out tickers that only fire when Tick is called.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

// NewFakeClock returns a FakeClock starting at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *FakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{
		c:    make(chan time.Time),
		stop: make(chan struct{}),
	}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

// Tick advances the clock by one second and delivers a tick to every live
// ticker, blocking until each one is received or stopped.
func (f *FakeClock) Tick() {
	f.mu.Lock()
	f.now = f.now.Add(time.Second)
	now := f.now
	live := f.tickers[:0]
	for _, t := range f.tickers {
		if !t.stopped() {
			live = append(live, t)
		}
	}
	f.tickers = live
	pending := append([]*fakeTicker(nil), live...)
	f.mu.Unlock()

	for _, t := range pending {
		select {
		case t.c <- now:
		case <-t.stop:
		}
	}
}

// Advance calls Tick n times.
func (f *FakeClock) Advance(n int) {
	for i := 0; i < n; i++ {
		f.Tick()
	}
}

// Active reports how many tickers have not been stopped.
func (f *FakeClock) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.tickers {
		if !t.stopped() {
			n++
		}
	}
	return n
}

type fakeTicker struct {
	c    chan time.Time
	stop chan struct{}
	once sync.Once
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.c }

func (t *fakeTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (t *fakeTicker) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

package game

import (
	"sync"
	"time"

	"github.com/mittens-dev/pipeline-panic/internal/domain"
)

// fakeClock drives the engine's timers deterministically. Advance moves
// time forward and fires due timers in order, releasing the clock lock
// around each callback so callbacks may schedule new timers.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		var next *fakeTimer
		for _, t := range c.timers {
			if t.done || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.done = true
		c.mu.Unlock()
		next.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// scriptDice pops scripted values and falls back to a fixed default, so a
// test only has to script the rolls it cares about.
type scriptDice struct {
	mu       sync.Mutex
	floats   []float64
	perms    [][]int
	fallback float64
}

func newScriptDice(fallback float64, floats ...float64) *scriptDice {
	return &scriptDice{floats: floats, fallback: fallback}
}

func (d *scriptDice) Float64() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.floats) == 0 {
		return d.fallback
	}
	v := d.floats[0]
	d.floats = d.floats[1:]
	return v
}

func (d *scriptDice) Perm(n int) []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.perms) > 0 {
		p := d.perms[0]
		d.perms = d.perms[1:]
		return p
	}
	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	return identity
}

// stubNarrator records start requests and optionally fails them.
type stubNarrator struct {
	mu   sync.Mutex
	reqs []domain.StartDeployment
	err  error
}

func (s *stubNarrator) StartDeployment(req domain.StartDeployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.reqs = append(s.reqs, req)
	return nil
}

func (s *stubNarrator) requests() []domain.StartDeployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.StartDeployment, len(s.reqs))
	copy(out, s.reqs)
	return out
}

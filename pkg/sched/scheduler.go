// Package sched implements the per-tick continuation scheduler that drives every timed wait in the
// simulation: dialogue countdowns, typewriter reveal, stepped trust, patrol waits, chase grace and memory
// expiry. Nothing sleeps; a timer is a continuation that runs when the simulated clock passes its due time.
package sched

import (
	"sort"
	"time"
)

// minInterval bounds repeating timers so a zero interval cannot spin Advance forever.
const minInterval = time.Millisecond

// Timer is a pending continuation owned by some entity.
type Timer struct {
	s        *Scheduler
	owner    string
	due      time.Duration
	interval time.Duration
	seq      uint64
	fn       func()
	active   bool
}

// Scheduler owns the simulated clock. It is single-threaded by design of the simulation: every call must
// come from the goroutine that runs the tick loop.
type Scheduler struct {
	now    time.Duration
	seq    uint64
	timers []*Timer
}

func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the simulated time.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// After schedules fn to run once, d after now. A non-positive d runs on the next Advance.
func (s *Scheduler) After(owner string, d time.Duration, fn func()) *Timer {
	if d < 0 {
		d = 0
	}
	return s.add(owner, s.now+d, 0, fn)
}

// Every schedules fn to run every d, first at now+d.
func (s *Scheduler) Every(owner string, d time.Duration, fn func()) *Timer {
	if d < minInterval {
		d = minInterval
	}
	return s.add(owner, s.now+d, d, fn)
}

func (s *Scheduler) add(owner string, due, interval time.Duration, fn func()) *Timer {
	s.seq++
	t := &Timer{
		s:        s,
		owner:    owner,
		due:      due,
		interval: interval,
		seq:      s.seq,
		fn:       fn,
		active:   true,
	}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward by dt and runs every timer that falls due, in due order (creation order
// breaks ties). While a timer runs, Now reports its due time. Timers scheduled by a running continuation
// that fall due within the window also run.
func (s *Scheduler) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	target := s.now + dt
	for {
		t := s.nextDue(target)
		if t == nil {
			break
		}
		if t.due > s.now {
			s.now = t.due
		}
		if t.interval > 0 {
			t.due += t.interval
		} else {
			t.active = false
		}
		t.fn()
	}
	s.now = target
	s.compact()
}

func (s *Scheduler) nextDue(target time.Duration) *Timer {
	var best *Timer
	for _, t := range s.timers {
		if !t.active || t.due > target {
			continue
		}
		if best == nil || t.due < best.due || (t.due == best.due && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (s *Scheduler) compact() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if t.active {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.timers); i++ {
		s.timers[i] = nil
	}
	s.timers = live
}

// CancelOwner cancels every pending timer belonging to owner and returns how many were cancelled.
func (s *Scheduler) CancelOwner(owner string) int {
	n := 0
	for _, t := range s.timers {
		if t.active && t.owner == owner {
			t.active = false
			n++
		}
	}
	return n
}

// Pending returns the number of active timers for owner.
func (s *Scheduler) Pending(owner string) int {
	n := 0
	for _, t := range s.timers {
		if t.active && t.owner == owner {
			n++
		}
	}
	return n
}

// Owners lists owners with at least one active timer, sorted.
func (s *Scheduler) Owners() []string {
	seen := make(map[string]struct{})
	for _, t := range s.timers {
		if t.active {
			seen[t.owner] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	sort.Strings(out)
	return out
}

// Cancel stops the timer. Cancelling an inactive or nil timer is a no-op.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.active = false
}

// Active reports whether the timer is still pending.
func (t *Timer) Active() bool {
	return t != nil && t.active
}

// Remaining returns the time left before the timer fires, or 0 if it is inactive.
func (t *Timer) Remaining() time.Duration {
	if !t.Active() {
		return 0
	}
	r := t.due - t.s.now
	if r < 0 {
		return 0
	}
	return r
}

// Owner returns the owner key the timer was scheduled under.
func (t *Timer) Owner() string {
	return t.owner
}

package sched

import "time"

// Func is invoked with the time elapsed since its previous invocation.
type Func func(dt time.Duration)

// Timer is a handle to a scheduled callback.
type Timer struct {
	interval  time.Duration
	accum     time.Duration
	fn        Func
	cancelled bool
	armed     bool
}

// Active reports whether the timer can still fire.
func (t *Timer) Active() bool {
	return t != nil && !t.cancelled
}

// Scheduler runs callbacks cooperatively from a host frame loop. Nothing here
// is safe for concurrent use; call it from the goroutine that owns the loop.
type Scheduler struct {
	timers []*Timer
	now    time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule registers fn. An interval of zero fires every tick; a positive
// interval fires once the accumulated delta reaches it and passes that
// accumulated delta to fn. A timer first fires on the tick after it was
// scheduled.
func (s *Scheduler) Schedule(interval time.Duration, fn Func) *Timer {
	if fn == nil {
		return nil
	}
	if interval < 0 {
		interval = 0
	}
	t := &Timer{interval: interval, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Unschedule cancels t. It never fires again, even if it was due later in the
// current tick.
func (s *Scheduler) Unschedule(t *Timer) {
	if t == nil {
		return
	}
	t.cancelled = true
}

// Now is the sum of every delta passed to Update.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// Len reports the number of live timers.
func (s *Scheduler) Len() int {
	n := 0
	for _, t := range s.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// Update advances the clock by dt and runs every due timer once.
func (s *Scheduler) Update(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	s.now += dt

	for _, t := range s.timers {
		t.armed = !t.cancelled
	}

	// Callbacks may append to s.timers; only timers armed above run this tick.
	for i := 0; i < len(s.timers); i++ {
		t := s.timers[i]
		if !t.armed || t.cancelled {
			continue
		}
		t.accum += dt
		if t.accum < t.interval {
			continue
		}
		elapsed := t.accum
		t.accum = 0
		t.fn(elapsed)
	}

	s.compact()
}

func (s *Scheduler) compact() {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.cancelled {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(s.timers); i++ {
		s.timers[i] = nil
	}
	s.timers = live
}

package game

import (
	"slices"
	"time"
)

// Clock reports simulation time.
type Clock interface {
	Now() time.Duration
}

// SimClock is advanced by whole fixed steps so scheduled fire times compare
// exactly.
type SimClock struct {
	now time.Duration
}

func (c *SimClock) Now() time.Duration { return c.now }

func (c *SimClock) Advance(dt time.Duration) {
	if dt > 0 {
		c.now += dt
	}
}

// Handle identifies a scheduled continuation. The zero Handle is never issued.
type Handle uint64

type continuation struct {
	handle Handle
	at     time.Duration
	fn     func()
}

// Schedule is a per-entity queue of deferred single-shot effects. Entries
// fire from Drain once the clock reaches their fire time, in fire-time order
// and then insertion order.
type Schedule struct {
	clock   Clock
	pending []continuation
	next    Handle
}

func NewSchedule(clock Clock) *Schedule {
	return &Schedule{clock: clock}
}

// After schedules fn to run delay from now.
func (s *Schedule) After(delay time.Duration, fn func()) Handle {
	if delay < 0 {
		delay = 0
	}
	s.next++
	c := continuation{handle: s.next, at: s.clock.Now() + delay, fn: fn}
	// keep pending sorted by (at, handle)
	i, _ := slices.BinarySearchFunc(s.pending, c, func(a, b continuation) int {
		if a.at != b.at {
			if a.at < b.at {
				return -1
			}
			return 1
		}
		if a.handle < b.handle {
			return -1
		}
		return 1
	})
	s.pending = slices.Insert(s.pending, i, c)
	return c.handle
}

// Cancel drops a pending continuation. It reports whether one was removed.
func (s *Schedule) Cancel(h Handle) bool {
	if h == 0 {
		return false
	}
	n := len(s.pending)
	s.pending = slices.DeleteFunc(s.pending, func(c continuation) bool { return c.handle == h })
	return len(s.pending) != n
}

// Pending reports whether h is still waiting to fire.
func (s *Schedule) Pending(h Handle) bool {
	return h != 0 && slices.ContainsFunc(s.pending, func(c continuation) bool { return c.handle == h })
}

func (s *Schedule) Clear() { s.pending = nil }

func (s *Schedule) Len() int { return len(s.pending) }

// Drain runs every continuation whose fire time has been reached. Entries
// scheduled by a running continuation fire in the same drain if already due.
func (s *Schedule) Drain() int {
	fired := 0
	now := s.clock.Now()
	for len(s.pending) > 0 && s.pending[0].at <= now {
		c := s.pending[0]
		s.pending = s.pending[1:]
		c.fn()
		fired++
	}
	return fired
}

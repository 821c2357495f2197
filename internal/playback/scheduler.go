package playback

import (
	"log/slog"
	"math"
	"time"
)

// State is the scheduler lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// uninitialized marks a countdown that has not been armed yet. The next tick
// is always a boundary.
const uninitialized = -1

// TickResult describes what a single tick did.
type TickResult struct {
	Boundary    bool
	Promoted    bool
	Composition *Composition
	Cursor      float64
	Failed      int // blocks whose Play returned an error
}

// Scheduler counts ticks down to the next cycle boundary. The tick is only a
// polling granularity: note timing comes from the absolute envelope times
// computed at the boundary.
//
// A boundary fires on the last tick at or before the end of the playing
// cycle; the countdown carries the leftover fraction of a tick into the next
// cycle. The next cycle is laid out from where the playing one ends, not from
// the tick that noticed it.
type Scheduler struct {
	buffer     *Buffer
	clock      Clock
	tickPeriod time.Duration
	logger     *slog.Logger
	onPromote  func(previous, next *Composition)

	state     State
	remaining int
	owed      float64 // fractional ticks carried between cycles
	nextStart float64
	anchored  bool // nextStart belongs to the cycle now playing
}

func NewScheduler(buffer *Buffer, clock Clock, tickPeriod time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		buffer:     buffer,
		clock:      clock,
		tickPeriod: tickPeriod,
		logger:     logger,
		remaining:  uninitialized,
	}
}

// Start moves the scheduler to Running with an unarmed countdown. The buffer
// is left alone, so a composition proposed while stopped plays on the first
// tick.
func (s *Scheduler) Start() {
	if s.state == Running {
		return
	}
	s.state = Running
	s.disarm()
}

// disarm forgets the countdown so the next tick is a boundary at the clock.
func (s *Scheduler) disarm() {
	s.remaining = uninitialized
	s.anchored = false
	s.owed = 0
}

// Stop halts ticking. The countdown and buffer are kept but inert.
func (s *Scheduler) Stop() {
	s.state = Stopped
}

func (s *Scheduler) State() State { return s.state }

func (s *Scheduler) TickPeriod() time.Duration { return s.tickPeriod }

// Tick advances the countdown by one and runs a boundary when it expires.
func (s *Scheduler) Tick() TickResult {
	if s.state != Running {
		return TickResult{}
	}
	if s.remaining != uninitialized {
		if s.remaining > 0 {
			s.remaining--
		}
		if s.remaining > 0 {
			return TickResult{}
		}
	}
	return s.boundary()
}

func (s *Scheduler) boundary() TickResult {
	previous := s.buffer.Current()
	c := s.buffer.PromoteIfPending()
	if c == nil {
		s.disarm()
		return TickResult{Boundary: true}
	}
	res := TickResult{Boundary: true, Composition: c, Promoted: c != previous}
	if res.Promoted {
		s.logger.Debug("promoted composition", "id", c.ID, "blocks", len(c.Blocks), "cycle", c.CycleLength)
		if s.onPromote != nil {
			s.onPromote(previous, c)
		}
	}
	res.Cursor = s.clock.Now()
	if s.anchored && s.nextStart > res.Cursor {
		res.Cursor = s.nextStart
	}
	s.nextStart = res.Cursor + c.CycleLength
	s.anchored = true
	s.remaining = s.rearm(c.CycleLength)
	for i, b := range c.Blocks {
		if err := b.Play(res.Cursor); err != nil {
			res.Failed++
			s.logger.Error("block dispatch failed", "composition", c.ID, "block", i, "err", err)
		}
	}
	return res
}

// rearm returns the ticks until the next boundary: the whole ticks that fit
// in one cycle plus whatever fraction earlier cycles left over. Never less
// than one.
func (s *Scheduler) rearm(cycleLength float64) int {
	s.owed += cycleTicks(cycleLength, s.tickPeriod)
	n := int(math.Floor(s.owed + 1e-9))
	if n < 1 {
		n = 1
	}
	s.owed -= float64(n)
	if s.owed < 0 {
		s.owed = 0
	}
	return n
}

// cycleTicks is the exact, fractional number of tick periods in one cycle.
func cycleTicks(cycleLength float64, tickPeriod time.Duration) float64 {
	if tickPeriod <= 0 {
		return 1
	}
	return cycleLength / tickPeriod.Seconds()
}

package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cbegin/bayz-go/internal/score"
)

// DefaultTickPeriod is the scheduler polling period.
const DefaultTickPeriod = 50 * time.Millisecond

type EngineOption func(*engineConfig)

type engineConfig struct {
	tickPeriod time.Duration
	logger     *slog.Logger
	retire     func(*Composition)
}

func WithTickPeriod(d time.Duration) EngineOption {
	return func(cfg *engineConfig) {
		if d > 0 {
			cfg.tickPeriod = d
		}
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(cfg *engineConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithRetire installs a hook called with compositions that will never play
// again: the one replaced at a boundary, or a proposal overwritten before it
// was promoted. The hook is where voices get stopped.
func WithRetire(fn func(*Composition)) EngineOption {
	return func(cfg *engineConfig) {
		cfg.retire = fn
	}
}

// Engine owns one composition buffer and one scheduler. All mutations are
// serialized, so snapshots and ticks never interleave.
type Engine struct {
	mu        sync.Mutex
	factory   VoiceFactory
	clock     Clock
	logger    *slog.Logger
	retire    func(*Composition)
	buffer    *Buffer
	scheduler *Scheduler
}

func NewEngine(factory VoiceFactory, clock Clock, opts ...EngineOption) *Engine {
	cfg := engineConfig{tickPeriod: DefaultTickPeriod, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger.With("component", "engine")
	buffer := NewBuffer()
	e := &Engine{
		factory: factory,
		clock:   clock,
		logger:  logger,
		retire:  cfg.retire,
		buffer:  buffer,
	}
	e.scheduler = NewScheduler(buffer, clock, cfg.tickPeriod, logger)
	e.scheduler.onPromote = func(previous, _ *Composition) {
		if previous != nil {
			e.retireComposition(previous)
		}
	}
	return e
}

// OnCompositionReceived turns a snapshot into blocks and proposes it for the
// next boundary. Snapshots without the deploy flag are ignored. Invalid
// snapshots are dropped and leave the pending proposal untouched.
func (e *Engine) OnCompositionReceived(s score.Snapshot) error {
	if !s.Deploy {
		return nil
	}
	if err := score.Validate(s); err != nil {
		e.logger.Warn("dropping invalid composition", "revision", s.Revision, "err", err)
		return err
	}
	c := &Composition{
		ID:          s.Revision,
		CycleLength: s.CycleLength,
		Blocks:      make([]*Block, 0, len(s.Sound)),
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tag := range s.Sound {
		b, err := NewBlock(tag, s.CycleLength, e.factory)
		if err != nil {
			// Validated above; unreachable unless the factory misbehaves.
			e.retireComposition(c)
			e.logger.Warn("dropping composition", "id", c.ID, "err", err)
			return err
		}
		c.Blocks = append(c.Blocks, b)
	}
	if displaced := e.buffer.Propose(c); displaced != nil {
		e.retireComposition(displaced)
	}
	e.logger.Debug("proposed composition", "id", c.ID, "blocks", len(c.Blocks), "cycle", c.CycleLength)
	return nil
}

func (e *Engine) retireComposition(c *Composition) {
	if e.retire != nil {
		e.retire(c)
	}
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.Start()
	e.logger.Info("playback started")
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.Stop()
	e.logger.Info("playback stopped")
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.State() == Running
}

// Tick runs one scheduler period.
func (e *Engine) Tick() TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduler.Tick()
}

// Reset stops the scheduler and empties the buffer, retiring whatever it held.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scheduler.Stop()
	e.scheduler.disarm()
	current, pending := e.buffer.Current(), e.buffer.Pending()
	e.buffer.Reset()
	for _, c := range []*Composition{current, pending} {
		if c != nil {
			e.retireComposition(c)
		}
	}
}

func (e *Engine) Buffer() *Buffer           { return e.buffer }
func (e *Engine) TickPeriod() time.Duration { return e.scheduler.TickPeriod() }

// Run drives the engine until ctx is done: a ticker fires Tick every period
// and snapshots from the channel are consumed between ticks. A nil or closed
// channel only disables snapshot consumption.
func (e *Engine) Run(ctx context.Context, snapshots <-chan score.Snapshot) error {
	ticker := time.NewTicker(e.TickPeriod())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			_ = e.OnCompositionReceived(s)
		case <-ticker.C:
			e.Tick()
		}
	}
}

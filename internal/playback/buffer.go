package playback

import "sync/atomic"

// Composition is one full loop: blocks that all start together every cycle.
type Composition struct {
	ID          string
	Blocks      []*Block
	CycleLength float64
}

// Buffer is the double buffer between received compositions and the one
// being looped. A proposal only becomes current at a cycle boundary. Both
// slots are single-pointer exchanges, so a proposal arriving mid-promotion
// either lands before it and is promoted or after it and waits.
type Buffer struct {
	current  atomic.Pointer[Composition]
	proposed atomic.Pointer[Composition]
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Propose replaces any pending proposal; the last proposal before a boundary
// wins. The displaced proposal, if any, is returned so its voices can be
// released.
func (b *Buffer) Propose(c *Composition) (displaced *Composition) {
	return b.proposed.Swap(c)
}

// PromoteIfPending moves the pending proposal into the current slot and
// returns the current composition, which is nil until something has been
// proposed.
func (b *Buffer) PromoteIfPending() *Composition {
	if p := b.proposed.Swap(nil); p != nil {
		b.current.Store(p)
		return p
	}
	return b.current.Load()
}

func (b *Buffer) Current() *Composition { return b.current.Load() }
func (b *Buffer) Pending() *Composition { return b.proposed.Load() }

// Reset empties both slots.
func (b *Buffer) Reset() {
	b.proposed.Store(nil)
	b.current.Store(nil)
}

package playback

import (
	"sync"
	"testing"
)

func TestBufferPromoteMovesProposal(t *testing.T) {
	b := NewBuffer()
	if got := b.PromoteIfPending(); got != nil {
		t.Fatalf("empty buffer promoted %v", got)
	}
	c := &Composition{ID: "a", CycleLength: 1}
	b.Propose(c)
	if got := b.PromoteIfPending(); got != c {
		t.Fatalf("promote returned %v, want proposal", got)
	}
	if b.Current() != c || b.Pending() != nil {
		t.Fatalf("after promote current=%v pending=%v", b.Current(), b.Pending())
	}
	if got := b.PromoteIfPending(); got != c {
		t.Fatalf("second promote changed current to %v", got)
	}
	if b.Pending() != nil {
		t.Fatalf("no-op promote set a proposal")
	}
}

func TestBufferLastProposalWins(t *testing.T) {
	b := NewBuffer()
	first := &Composition{ID: "first"}
	second := &Composition{ID: "second"}
	if displaced := b.Propose(first); displaced != nil {
		t.Fatalf("nothing should be displaced yet")
	}
	if displaced := b.Propose(second); displaced != first {
		t.Fatalf("displaced = %v, want first", displaced)
	}
	if got := b.PromoteIfPending(); got != second {
		t.Fatalf("promoted %v, want second", got)
	}
	if got := b.PromoteIfPending(); got != second {
		t.Fatalf("first proposal resurfaced: %v", got)
	}
}

func TestBufferReset(t *testing.T) {
	b := NewBuffer()
	b.Propose(&Composition{ID: "a"})
	b.PromoteIfPending()
	b.Propose(&Composition{ID: "b"})
	b.Reset()
	if b.Current() != nil || b.Pending() != nil {
		t.Fatalf("reset left state behind")
	}
}

func TestBufferConcurrentProposeAndPromote(t *testing.T) {
	b := NewBuffer()
	const n = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			b.Propose(&Composition{ID: "c", CycleLength: float64(i + 1)})
		}
	}()
	for i := 0; i < n; i++ {
		b.PromoteIfPending()
	}
	wg.Wait()
	last := b.PromoteIfPending()
	if last == nil || last.CycleLength != n {
		t.Fatalf("final promotion = %+v, want the last proposal", last)
	}
	if b.Pending() != nil {
		t.Fatalf("proposal left pending after final promotion")
	}
}

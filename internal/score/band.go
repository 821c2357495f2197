package score

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cbegin/bayz-go/internal/rhythm"
)

// Band stages lines for the next commit.
type Band struct {
	mu          sync.Mutex
	cycleLength float64
	lines       []Tag
}

func NewBand(cycleLength float64) *Band {
	if cycleLength <= 0 {
		cycleLength = DefaultCycleLength
	}
	return &Band{cycleLength: cycleLength}
}

// AddLine stages a phrase. An empty rhythm defaults to [1] and an empty
// instrument to DefaultInstrument.
func (b *Band) AddLine(notes []int, rhy []float64, instrument string) error {
	if len(rhy) == 0 {
		rhy = []float64{1}
	}
	if instrument == "" {
		instrument = DefaultInstrument
	}
	tag := Tag{Instrument: instrument, Notes: notes, Rhythm: rhy}.Clone()
	if err := ValidateTag(tag); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, tag)
	return nil
}

func (b *Band) SetCycleLength(seconds float64) error {
	if !(seconds > 0) {
		return errors.Wrapf(rhythm.ErrInvalidInput, "cycle length %v must be positive", seconds)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cycleLength = seconds
	return nil
}

func (b *Band) CycleLength() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cycleLength
}

func (b *Band) Lines() []Tag {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Tag, len(b.lines))
	for i, l := range b.lines {
		out[i] = l.Clone()
	}
	return out
}

func (b *Band) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}

// Snapshot builds a deployable snapshot with a fresh revision.
func (b *Band) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{
		Deploy:      true,
		CycleLength: b.cycleLength,
		Sound:       make([]Tag, len(b.lines)),
		Revision:    uuid.NewString(),
	}
	for i, l := range b.lines {
		s.Sound[i] = l.Clone()
	}
	return s
}

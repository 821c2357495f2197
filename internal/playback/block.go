package playback

import (
	"github.com/pkg/errors"

	"github.com/cbegin/bayz-go/internal/rhythm"
	"github.com/cbegin/bayz-go/internal/score"
)

// NoteEvent is one scheduled note with absolute start and stop times.
type NoteEvent struct {
	Pitch int
	Start float64
	Stop  float64
}

// Layout spreads the notes of tag across one cycle starting at cursor. Each
// note lasts its rhythm weight times cycleLength/totalDuration seconds.
func Layout(tag score.Tag, cycleLength float64, cursor float64) ([]NoteEvent, error) {
	duration, err := rhythm.TotalDuration(tag.Notes, tag.Rhythm)
	if err != nil {
		return nil, err
	}
	if !(duration > 0) {
		return nil, errors.Wrapf(ErrInvalidInput, "rhythm %v has zero total duration", tag.Rhythm)
	}
	unit := cycleLength / duration
	events := make([]NoteEvent, len(tag.Notes))
	for i, note := range tag.Notes {
		stop := cursor + rhythm.Weight(tag.Rhythm, i)*unit
		events[i] = NoteEvent{Pitch: note, Start: cursor, Stop: stop}
		cursor = stop
	}
	return events, nil
}

// Block binds one phrase to the voice that performs it. The voice belongs to
// the block for the block's lifetime.
type Block struct {
	tag         score.Tag
	cycleLength float64
	voice       Voice
}

// NewBlock validates tag, takes a voice from factory and arms it.
func NewBlock(tag score.Tag, cycleLength float64, factory VoiceFactory) (*Block, error) {
	if !(cycleLength > 0) {
		return nil, errors.Wrapf(ErrInvalidInput, "cycle length %v must be positive", cycleLength)
	}
	if err := score.ValidateTag(tag); err != nil {
		return nil, err
	}
	v := factory.NewVoice(tag.Instrument)
	v.Arm()
	return &Block{
		tag:         tag.Clone(),
		cycleLength: cycleLength,
		voice:       v,
	}, nil
}

// Play schedules every note of the phrase for one cycle beginning at cursor.
// It only queues envelope changes on the voice and returns immediately.
func (b *Block) Play(cursor float64) error {
	if !b.voice.Armed() {
		return errors.Wrapf(ErrContractViolation, "block %q played through an unarmed voice", b.tag.Instrument)
	}
	events, err := Layout(b.tag, b.cycleLength, cursor)
	if err != nil {
		return err
	}
	for _, ev := range events {
		b.voice.SoundNote(ev.Pitch, ev.Start, ev.Stop)
	}
	return nil
}

func (b *Block) Tag() score.Tag       { return b.tag.Clone() }
func (b *Block) CycleLength() float64 { return b.cycleLength }
func (b *Block) Voice() Voice         { return b.voice }

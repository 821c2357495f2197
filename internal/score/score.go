// Package score holds the composition snapshot exchanged between the compose
// server and the playback client.
package score

import (
	"encoding/json"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/cbegin/bayz-go/internal/rhythm"
)

const (
	MinPitch = 0
	MaxPitch = 127

	DefaultInstrument  = "sine"
	DefaultCycleLength = 2.0
)

// Tag describes one phrase: an instrument name, its notes and a cyclic rhythm.
type Tag struct {
	Instrument string    `json:"name"`
	Notes      []int     `json:"notes"`
	Rhythm     []float64 `json:"rhythm"`
}

// Snapshot is a complete composition as published by the server.
// Deploy mirrors the server's "should deploy" flag; snapshots with Deploy
// unset are informational and never played.
type Snapshot struct {
	Deploy      bool    `json:"deploy"`
	CycleLength float64 `json:"cycleLength"`
	Sound       []Tag   `json:"sound"`
	Revision    string  `json:"revision,omitempty"`
}

// Clone returns a deep copy so callers can hold on to tags after the source
// snapshot is reused.
func (t Tag) Clone() Tag {
	return Tag{
		Instrument: t.Instrument,
		Notes:      append([]int(nil), t.Notes...),
		Rhythm:     append([]float64(nil), t.Rhythm...),
	}
}

func (s Snapshot) Clone() Snapshot {
	out := s
	out.Sound = make([]Tag, len(s.Sound))
	for i, tag := range s.Sound {
		out.Sound[i] = tag.Clone()
	}
	return out
}

// ValidateTag checks a single phrase. Errors wrap rhythm.ErrInvalidInput.
func ValidateTag(t Tag) error {
	if len(t.Notes) == 0 {
		return errors.Wrap(rhythm.ErrInvalidInput, "empty note sequence")
	}
	if len(t.Rhythm) == 0 {
		return errors.Wrap(rhythm.ErrInvalidInput, "empty rhythm sequence")
	}
	if !rhythm.ValidWeights(t.Rhythm) {
		return errors.Wrapf(rhythm.ErrInvalidInput, "rhythm %v has negative or non-finite weights", t.Rhythm)
	}
	for _, n := range t.Notes {
		if n < MinPitch || n > MaxPitch {
			return errors.Wrapf(rhythm.ErrInvalidInput, "pitch %d out of range", n)
		}
	}
	total, err := rhythm.TotalDuration(t.Notes, t.Rhythm)
	if err != nil {
		return err
	}
	if total <= 0 {
		return errors.Wrap(rhythm.ErrInvalidInput, "rhythm has zero total duration")
	}
	return nil
}

// Validate checks the cycle length and every phrase of s.
func Validate(s Snapshot) error {
	if !(s.CycleLength > 0) || math.IsInf(s.CycleLength, 0) {
		return errors.Wrapf(rhythm.ErrInvalidInput, "cycle length %v must be positive", s.CycleLength)
	}
	for i, tag := range s.Sound {
		if err := ValidateTag(tag); err != nil {
			return errors.Wrapf(err, "line %d (%s)", i, tag.Instrument)
		}
	}
	return nil
}

// Decode reads one JSON snapshot.
func Decode(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot")
	}
	return s, nil
}

// Package midiexport writes a composition snapshot as a Standard MIDI File.
package midiexport

import (
	"io"
	"math"
	"sort"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/bayz-go/internal/playback"
	"github.com/cbegin/bayz-go/internal/score"
)

const (
	// TicksPerQuarter at Tempo BPM makes one quarter note last one second,
	// so a tick is 1/960 s.
	TicksPerQuarter = 960
	Tempo           = 60
	Velocity        = 100

	drumChannel = 9
)

type event struct {
	tick uint32
	on   bool
	key  uint8
}

// Build lays out cycles repetitions of s. Track 0 carries tempo and meter;
// each line gets its own track named after its instrument.
func Build(s score.Snapshot, cycles int) (*smf.SMF, error) {
	if err := score.Validate(s); err != nil {
		return nil, err
	}
	if cycles <= 0 {
		cycles = 1
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var track0 smf.Track
	track0.Add(0, smf.MetaMeter(4, 4))
	track0.Add(0, smf.MetaTempo(Tempo))
	track0.Close(0)
	if err := sm.Add(track0); err != nil {
		return nil, errors.Wrap(err, "add tempo track")
	}

	end := toTicks(float64(cycles) * s.CycleLength)
	for i, tag := range s.Sound {
		events, err := lineEvents(tag, s.CycleLength, cycles)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i)
		}
		ch := channelFor(i)

		var track smf.Track
		track.Add(0, smf.MetaTrackSequenceName(tag.Instrument))
		var last uint32
		for _, ev := range events {
			delta := ev.tick - last
			if ev.on {
				track.Add(delta, midi.NoteOn(ch, ev.key, Velocity))
			} else {
				track.Add(delta, midi.NoteOff(ch, ev.key))
			}
			last = ev.tick
		}
		var tail uint32
		if end > last {
			tail = end - last
		}
		track.Close(tail)
		if err := sm.Add(track); err != nil {
			return nil, errors.Wrapf(err, "add track %d", i)
		}
	}
	return sm, nil
}

func Write(w io.Writer, s score.Snapshot, cycles int) error {
	sm, err := Build(s, cycles)
	if err != nil {
		return err
	}
	if _, err := sm.WriteTo(w); err != nil {
		return errors.Wrap(err, "write midi")
	}
	return nil
}

func WriteFile(path string, s score.Snapshot, cycles int) error {
	sm, err := Build(s, cycles)
	if err != nil {
		return err
	}
	return errors.Wrapf(sm.WriteFile(path), "write %s", path)
}

// lineEvents returns note on/off events in tick order. Notes with a zero
// rhythm weight are silent and omitted. At equal ticks note-offs come first
// so a repeated pitch is released before it is struck again.
func lineEvents(tag score.Tag, cycleLength float64, cycles int) ([]event, error) {
	var events []event
	for c := 0; c < cycles; c++ {
		notes, err := playback.Layout(tag, cycleLength, float64(c)*cycleLength)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			start, stop := toTicks(n.Start), toTicks(n.Stop)
			if stop <= start {
				continue
			}
			key := uint8(n.Pitch)
			events = append(events, event{tick: start, on: true, key: key}, event{tick: stop, on: false, key: key})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})
	return events, nil
}

func toTicks(seconds float64) uint32 {
	return uint32(math.Round(seconds * TicksPerQuarter))
}

// channelFor spreads lines over the melodic channels, skipping the GM drum
// channel.
func channelFor(line int) uint8 {
	ch := uint8(line % 15)
	if ch >= drumChannel {
		ch++
	}
	return ch
}

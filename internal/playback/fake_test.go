package playback

import "github.com/cbegin/bayz-go/internal/score"

type soundedNote struct {
	pitch       int
	start, stop float64
}

type fakeVoice struct {
	instrument string
	armed      bool
	notes      []soundedNote
	releases   []float64
	stops      []float64
}

func (v *fakeVoice) Arm()        { v.armed = true }
func (v *fakeVoice) Armed() bool { return v.armed }
func (v *fakeVoice) SoundNote(pitch int, start, stop float64) {
	v.notes = append(v.notes, soundedNote{pitch, start, stop})
}
func (v *fakeVoice) Release(at float64) { v.releases = append(v.releases, at) }
func (v *fakeVoice) Stop(at float64)    { v.stops = append(v.stops, at) }

type fakeFactory struct {
	voices []*fakeVoice
	noArm  bool
}

func (f *fakeFactory) NewVoice(instrument string) Voice {
	v := &fakeVoice{instrument: instrument}
	f.voices = append(f.voices, v)
	if f.noArm {
		return unarmable{v}
	}
	return v
}

// unarmable ignores Arm so tests can exercise the unarmed path.
type unarmable struct{ *fakeVoice }

func (unarmable) Arm() {}

type fakeClock struct{ now float64 }

func (c *fakeClock) Now() float64 { return c.now }

func snapshot(cycle float64, tags ...score.Tag) score.Snapshot {
	return score.Snapshot{Deploy: true, CycleLength: cycle, Sound: tags}
}

func tag(notes []int, rhy []float64) score.Tag {
	return score.Tag{Instrument: "sine", Notes: notes, Rhythm: rhy}
}

package voice

import (
	"math"
	"testing"

	"github.com/cbegin/bayz-go/internal/playback"
)

const testRate = 8000

func peak(buf []float32, from, to int) float64 {
	var p float64
	for i := from * 2; i < to*2 && i < len(buf); i++ {
		if a := math.Abs(float64(buf[i])); a > p {
			p = a
		}
	}
	return p
}

func render(m *Mixer, seconds float64) []float32 {
	buf := make([]float32, int(seconds*testRate)*2)
	m.Process(buf)
	return buf
}

func TestMixerImplementsPlaybackCollaborators(t *testing.T) {
	var _ playback.VoiceFactory = (*Mixer)(nil)
	var _ playback.Clock = (*Mixer)(nil)
	var _ playback.Voice = (*Oscillator)(nil)
}

func TestMixerClockAdvancesWithFrames(t *testing.T) {
	m := NewMixer(testRate)
	if m.Now() != 0 {
		t.Fatalf("clock starts at %v", m.Now())
	}
	m.Process(make([]float32, testRate)) // half a second of stereo frames
	if got := m.Now(); got != 0.5 {
		t.Fatalf("clock = %v, want 0.5", got)
	}
}

func TestArmConnectsSilentVoice(t *testing.T) {
	m := NewMixer(testRate)
	v := m.NewVoice("sine")
	if v.Armed() {
		t.Fatalf("voice armed before Arm")
	}
	if m.ActiveVoices() != 0 {
		t.Fatalf("unarmed voice connected")
	}
	v.Arm()
	if !v.Armed() || m.ActiveVoices() != 1 {
		t.Fatalf("arm did not connect the voice")
	}
	if p := peak(render(m, 0.1), 0, testRate); p != 0 {
		t.Fatalf("armed idle voice is audible: peak %v", p)
	}
}

func TestSoundNoteEnvelope(t *testing.T) {
	m := NewMixer(testRate)
	v := m.NewVoice("sine")
	v.Arm()
	v.SoundNote(69, 0.1, 0.3)
	buf := render(m, 0.8)
	if p := peak(buf, 0, 790); p != 0 {
		t.Fatalf("sound before start: peak %v", p)
	}
	sustain := peak(buf, 1600, 2400)
	if math.Abs(sustain-DefaultParams().Sustain) > 0.01 {
		t.Fatalf("sustain peak = %v, want about %v", sustain, DefaultParams().Sustain)
	}
	if tail := peak(buf, 5600, 6400); tail > 0.001 {
		t.Fatalf("voice still sounding long after release: %v", tail)
	}
}

func TestSoundNoteFrequency(t *testing.T) {
	m := NewMixer(testRate, WithParams(Params{Attack: 0.0001, Sustain: 0.5, Decay: 0.0001}))
	v := m.NewVoice("sine")
	v.Arm()
	v.SoundNote(69, 0, 1)
	buf := render(m, 1)
	crossings := 0
	for i := 2; i+2 < len(buf); i += 2 {
		if buf[i-2] < 0 && buf[i] >= 0 {
			crossings++
		}
	}
	if crossings < 435 || crossings > 445 {
		t.Fatalf("rising zero crossings = %d, want about 440", crossings)
	}
}

func TestNotesChangePitchAtStart(t *testing.T) {
	m := NewMixer(testRate)
	o := m.NewVoice("sine").(*Oscillator)
	o.Arm()
	o.SoundNote(60, 0, 0.1)
	o.SoundNote(72, 0.1, 0.2)
	buf := make([]float32, 2)
	m.Process(buf)
	if got, want := o.freq.value, midiToFreq(60); math.Abs(got-want) > 1e-9 {
		t.Fatalf("freq at start = %v, want %v", got, want)
	}
	m.Process(make([]float32, (int(0.1*testRate)+10)*2))
	if got, want := o.freq.value, midiToFreq(72); math.Abs(got-want) > 1e-9 {
		t.Fatalf("freq after second start = %v, want %v", got, want)
	}
}

func TestStopTearsDownAfterCleanupDelay(t *testing.T) {
	m := NewMixer(testRate, WithParams(Params{Attack: 0.01, Sustain: 0.1, Decay: 0.03, CleanupDelay: 0.2}))
	v := m.NewVoice("square")
	v.Arm()
	v.SoundNote(60, 0, 10)
	v.Stop(0.1)
	render(m, 0.25)
	if !v.Armed() || m.ActiveVoices() != 1 {
		t.Fatalf("voice torn down before cleanup delay")
	}
	render(m, 0.1)
	if v.Armed() || m.ActiveVoices() != 0 {
		t.Fatalf("voice still connected after cleanup delay")
	}
}

func TestReleaseAllSilences(t *testing.T) {
	m := NewMixer(testRate)
	for _, name := range []string{"sine", "triangle", "sawtooth"} {
		v := m.NewVoice(name)
		v.Arm()
		v.SoundNote(60, 0, 100)
	}
	render(m, 0.1)
	m.ReleaseAll(m.Now())
	render(m, 0.5)
	if p := peak(render(m, 0.1), 0, testRate); p > 0.001 {
		t.Fatalf("voices still sounding after ReleaseAll: %v", p)
	}
}

func TestMasterGainScalesAndClamps(t *testing.T) {
	m := NewMixer(testRate, WithParams(Params{Attack: 0.0001, Sustain: 1, Decay: 0.01}))
	v := m.NewVoice("square")
	v.Arm()
	v.SoundNote(60, 0, 1)
	m.SetMasterGain(4)
	if p := peak(render(m, 0.2), 100, 1600); p > 1 {
		t.Fatalf("output not clamped: %v", p)
	}
	m.SetMasterGain(-1)
	if m.MasterGain() != 0 {
		t.Fatalf("negative gain not clamped to 0")
	}
	if p := peak(render(m, 0.1), 0, 800); p != 0 {
		t.Fatalf("muted mixer produced %v", p)
	}
}

func TestRegistryFallback(t *testing.T) {
	r := NewRegistry()
	cases := []struct {
		name  string
		kind  Kind
		known bool
	}{
		{"sine", Sine, true},
		{"  Square ", Square, true},
		{"saw", Sawtooth, true},
		{"fallback", Sine, true},
		{"theremin", Sine, false},
		{"", Sine, false},
	}
	for _, tc := range cases {
		kind, known := r.Lookup(tc.name)
		if kind != tc.kind || known != tc.known {
			t.Fatalf("Lookup(%q) = %v,%v want %v,%v", tc.name, kind, known, tc.kind, tc.known)
		}
	}
	r.SetFallback(Triangle)
	if kind, _ := r.Lookup("theremin"); kind != Triangle {
		t.Fatalf("fallback not updated: %v", kind)
	}
	r.Register("bass", Sawtooth)
	if kind, known := r.Lookup("BASS"); kind != Sawtooth || !known {
		t.Fatalf("registered name not found")
	}
}

func TestMixerUnknownInstrumentGetsFallbackVoice(t *testing.T) {
	m := NewMixer(testRate)
	o, ok := m.NewVoice("kazoo").(*Oscillator)
	if !ok || o.Kind() != Sine {
		t.Fatalf("expected sine fallback oscillator, got %#v", o)
	}
}

func TestParamScheduleOrder(t *testing.T) {
	p := newParam(0)
	p.schedule(change{at: 2, target: 2})
	p.schedule(change{at: 1, target: 1})
	p.schedule(change{at: 1, target: 5})
	if p.pending[0].target != 1 || p.pending[1].target != 5 || p.pending[2].target != 2 {
		t.Fatalf("unexpected order %+v", p.pending)
	}
	if got := p.advance(1, 0.01); got != 5 {
		t.Fatalf("value at t=1 = %v, want 5", got)
	}
	if p.idle() {
		t.Fatalf("param reports idle with a change still queued")
	}
}

func TestMIDIToFreq(t *testing.T) {
	if got := MIDIToFreq(69); got != 440 {
		t.Fatalf("A4 = %v", got)
	}
	if got := MIDIToFreq(81); math.Abs(got-880) > 1e-9 {
		t.Fatalf("A5 = %v", got)
	}
	if got := MIDIToFreq(60); math.Abs(got-261.6255653) > 1e-6 {
		t.Fatalf("C4 = %v", got)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("Bass", Sawtooth)
	got := r.Names()
	want := []string{"bass", "fallback", "saw", "sawtooth", "sine", "square", "triangle"}
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

package voice

import (
	"math"
	"sync"
)

const twoPi = math.Pi * 2

// Params shapes every note a voice sounds. Attack and Decay are time
// constants in seconds for the exponential approach to Sustain and to
// silence. CleanupDelay is how long after Stop the oscillator keeps running
// before it is torn down.
type Params struct {
	Attack       float64
	Sustain      float64
	Decay        float64
	CleanupDelay float64
}

func DefaultParams() Params {
	return Params{
		Attack:       0.01,
		Sustain:      0.1,
		Decay:        0.03,
		CleanupDelay: 0.1,
	}
}

// Oscillator is a single-pitch voice: one waveform generator feeding one
// gain stage, both driven by scheduled automation.
type Oscillator struct {
	mu         sync.Mutex
	kind       Kind
	params     Params
	sampleRate float64
	connect    func(*Oscillator)

	armed      bool
	phase      float64
	freq       param
	gain       param
	teardownAt float64
	stopping   bool
	dead       bool
}

func newOscillator(kind Kind, params Params, sampleRate int, connect func(*Oscillator)) *Oscillator {
	return &Oscillator{
		kind:       kind,
		params:     params,
		sampleRate: float64(sampleRate),
		connect:    connect,
		freq:       newParam(midiToFreq(69)),
		gain:       newParam(0),
	}
}

func (o *Oscillator) Kind() Kind { return o.kind }

// Arm silences the output and connects the oscillator to its mixer.
func (o *Oscillator) Arm() {
	o.mu.Lock()
	if o.armed {
		o.mu.Unlock()
		return
	}
	o.gain = newParam(0)
	o.armed = true
	connect := o.connect
	o.mu.Unlock()
	if connect != nil {
		connect(o)
	}
}

func (o *Oscillator) Armed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.armed && !o.dead
}

// SoundNote sets the pitch at start, attacks towards the sustain level and
// releases at stop.
func (o *Oscillator) SoundNote(pitch int, start, stop float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.freq.schedule(change{at: start, target: midiToFreq(pitch)})
	o.gain.schedule(change{at: start, target: o.params.Sustain, tau: o.params.Attack})
	o.gain.schedule(change{at: stop, target: 0, tau: o.params.Decay})
}

func (o *Oscillator) Release(at float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain.schedule(change{at: at, target: 0, tau: o.params.Decay})
}

// Stop releases the voice at the given time and tears it down CleanupDelay
// seconds later. Envelope changes queued after that point never sound.
func (o *Oscillator) Stop(at float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gain.schedule(change{at: at, target: 0, tau: o.params.Decay})
	teardown := at + o.params.CleanupDelay
	if !o.stopping || teardown < o.teardownAt {
		o.teardownAt = teardown
	}
	o.stopping = true
}

// Dead reports whether the oscillator has been torn down.
func (o *Oscillator) Dead() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dead
}

// render adds len(dst) frames of output starting at time t0.
func (o *Oscillator) render(dst []float64, t0 float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dead || !o.armed {
		return
	}
	dt := 1 / o.sampleRate
	for i := range dst {
		t := t0 + float64(i)*dt
		if o.stopping && t >= o.teardownAt {
			o.dead = true
			o.freq.pending = nil
			o.gain.pending = nil
			return
		}
		f := o.freq.advance(t, dt)
		g := o.gain.advance(t, dt)
		if g == 0 {
			o.step(f)
			continue
		}
		dst[i] += o.sample(f) * g
	}
}

func (o *Oscillator) step(freq float64) {
	o.phase += freq / o.sampleRate
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}
}

func (o *Oscillator) sample(freq float64) float64 {
	dt := freq / o.sampleRate
	o.step(freq)
	p := o.phase
	switch o.kind {
	case Square:
		out := -1.0
		if p < 0.5 {
			out = 1
		}
		out += polyBLEP(p, dt)
		out -= polyBLEP(math.Mod(p+0.5, 1), dt)
		return out
	case Sawtooth:
		return 2*p - 1 - polyBLEP(p, dt)
	case Triangle:
		return 2*math.Abs(2*p-1) - 1
	default:
		return math.Sin(twoPi * p)
	}
}

// polyBLEP smooths a unit step at phase 0; t is the phase in [0,1) and dt
// the phase increment per frame.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// MIDIToFreq converts a MIDI pitch to Hz, A4 (69) = 440.
func MIDIToFreq(note int) float64 {
	return midiToFreq(note)
}

func midiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

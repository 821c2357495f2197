package voice

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/bayz-go/internal/playback"
)

// Mixer sums every connected voice into a stereo stream. Its frame counter
// is the audio clock: Now is the time of the next frame to be rendered.
type Mixer struct {
	mu         sync.Mutex
	sampleRate int
	registry   *Registry
	params     Params
	logger     *slog.Logger
	voices     []*Oscillator
	scratch    []float64

	frames     atomic.Int64
	masterGain atomic.Uint64
}

type MixerOption func(*Mixer)

func WithParams(p Params) MixerOption {
	return func(m *Mixer) { m.params = p }
}

func WithRegistry(r *Registry) MixerOption {
	return func(m *Mixer) {
		if r != nil {
			m.registry = r
		}
	}
}

func WithLogger(l *slog.Logger) MixerOption {
	return func(m *Mixer) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewMixer(sampleRate int, opts ...MixerOption) *Mixer {
	m := &Mixer{
		sampleRate: sampleRate,
		registry:   NewRegistry(),
		params:     DefaultParams(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "mixer")
	m.SetMasterGain(1)
	return m
}

// NewVoice creates an unarmed oscillator for the named instrument. Unknown
// names get the registry's fallback kind.
func (m *Mixer) NewVoice(instrument string) playback.Voice {
	kind, known := m.registry.Lookup(instrument)
	if !known {
		m.logger.Debug("unknown instrument, using fallback", "instrument", instrument, "kind", kind)
	}
	return newOscillator(kind, m.params, m.sampleRate, m.connect)
}

func (m *Mixer) connect(o *Oscillator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.voices = append(m.voices, o)
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

func (m *Mixer) Now() float64 {
	return float64(m.frames.Load()) / float64(m.sampleRate)
}

func (m *Mixer) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	m.masterGain.Store(math.Float64bits(gain))
}

func (m *Mixer) MasterGain() float64 {
	return math.Float64frombits(m.masterGain.Load())
}

// ActiveVoices counts connected voices that have not been torn down.
func (m *Mixer) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, v := range m.voices {
		if !v.Dead() {
			n++
		}
	}
	return n
}

// ReleaseAll fades every connected voice out from the given time.
func (m *Mixer) ReleaseAll(at float64) {
	m.mu.Lock()
	voices := append([]*Oscillator(nil), m.voices...)
	m.mu.Unlock()
	for _, v := range voices {
		v.Release(at)
	}
}

// Process renders len(dst)/2 stereo frames and advances the clock.
func (m *Mixer) Process(dst []float32) {
	frames := len(dst) / 2
	if frames == 0 {
		return
	}
	m.mu.Lock()
	if cap(m.scratch) < frames {
		m.scratch = make([]float64, frames)
	}
	buf := m.scratch[:frames]
	for i := range buf {
		buf[i] = 0
	}
	t0 := m.Now()
	live := m.voices[:0]
	for _, v := range m.voices {
		v.render(buf, t0)
		if !v.Dead() {
			live = append(live, v)
		}
	}
	for i := len(live); i < len(m.voices); i++ {
		m.voices[i] = nil
	}
	m.voices = live
	m.mu.Unlock()

	gain := m.MasterGain()
	for i, s := range buf {
		out := float32(clamp(s*gain, -1, 1))
		dst[i*2] = out
		dst[i*2+1] = out
	}
	m.frames.Add(int64(frames))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source renders interleaved stereo float32 frames.
type Source interface {
	Process(dst []float32)
}

// Reader adapts a Source to the little-endian float32 byte stream ebiten
// expects. Every Read renders exactly the frames requested, so the source's
// clock stays in step with what the device consumes.
type Reader struct {
	mu     sync.Mutex
	source Source
	buf    []float32
}

func NewReader(source Source) *Reader {
	return &Reader{source: source}
}

func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	return frames * 8, nil
}

func (r *Reader) Close() error { return nil }

// Output streams a Source to the default audio device.
type Output struct {
	player *ebitaudio.Player
	reader *Reader
}

var (
	contextOnce sync.Once
	context     *ebitaudio.Context
	contextRate int
)

// ebiten allows a single audio context per process.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextRate, sampleRate)
	}
	return context, nil
}

// Open creates a paused output. bufferSize trades latency for robustness;
// zero keeps ebiten's default.
func Open(sampleRate int, source Source, bufferSize time.Duration) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewReader(source)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	if bufferSize > 0 {
		pl.SetBufferSize(bufferSize)
	}
	return &Output{player: pl, reader: reader}, nil
}

func (o *Output) Resume()  { o.player.Play() }
func (o *Output) Suspend() { o.player.Pause() }

func (o *Output) Close() error {
	o.player.Pause()
	if err := o.player.Close(); err != nil {
		return err
	}
	return o.reader.Close()
}

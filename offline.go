package bayz

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cbegin/bayz-go/internal/score"
)

// RenderSnapshot plays s from a fresh start and returns seconds of
// interleaved stereo audio. The scheduler ticks once every tick period of
// rendered frames, so timing matches live playback without a device.
func RenderSnapshot(s score.Snapshot, sampleRate int, seconds float64, opts ...ClientOption) ([]float32, error) {
	cfg := defaultClientConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.sampleRate = sampleRate
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if cfg.tickPeriod <= 0 {
		return nil, errors.New("tickPeriod must be positive")
	}
	if seconds < 0 || math.IsNaN(seconds) {
		return nil, errors.New("seconds must not be negative")
	}

	mixer, engine := newPipeline(cfg)
	s = s.Clone()
	s.Deploy = true
	if err := engine.OnCompositionReceived(s); err != nil {
		return nil, err
	}
	engine.Start()

	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames*2)
	framesPerTick := int(math.Round(cfg.tickPeriod.Seconds() * float64(sampleRate)))
	if framesPerTick < 1 {
		framesPerTick = 1
	}
	for pos := 0; pos < frames; pos += framesPerTick {
		engine.Tick()
		end := pos + framesPerTick
		if end > frames {
			end = frames
		}
		chunk := out[pos*2 : end*2]
		mixer.Process(chunk)
		if cfg.sampleTap != nil {
			cfg.sampleTap(chunk)
		}
	}
	return out, nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3) // IEEE float
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}

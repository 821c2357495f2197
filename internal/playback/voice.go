package playback

import (
	"errors"

	"github.com/cbegin/bayz-go/internal/rhythm"
)

// Voice is an audio-producing unit that can sound one pitch at a time with an
// attack envelope at the start time and a release envelope at the stop time.
// Times are in seconds on the audio clock.
type Voice interface {
	// Arm silences the voice and connects it to the output. It must be called
	// before any SoundNote.
	Arm()
	Armed() bool
	SoundNote(pitch int, start, stop float64)
	// Release fades the voice out starting at the given time.
	Release(at float64)
	// Stop releases the voice and tears it down after its cleanup delay.
	Stop(at float64)
}

// VoiceFactory creates voices by instrument name. Unknown names must yield a
// fallback voice rather than an error.
type VoiceFactory interface {
	NewVoice(instrument string) Voice
}

// Clock is a monotonic audio clock in seconds.
type Clock interface {
	Now() float64
}

var (
	// ErrInvalidInput is returned for degenerate notes, rhythms or cycle lengths.
	ErrInvalidInput = rhythm.ErrInvalidInput
	// ErrContractViolation is returned when a block plays through an unarmed voice.
	ErrContractViolation = errors.New("contract violation")
)

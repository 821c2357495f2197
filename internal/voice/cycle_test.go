package voice

import (
	"testing"
	"time"

	"github.com/cbegin/bayz-go/internal/playback"
	"github.com/cbegin/bayz-go/internal/score"
)

// loop drives an engine against the mixer clock the way the client does:
// one tick, then one tick period of audio.
func loop(t *testing.T, cycle float64, tick time.Duration, seconds float64) []float32 {
	t.Helper()
	m := NewMixer(testRate)
	e := playback.NewEngine(m, m, playback.WithTickPeriod(tick))
	s := score.Snapshot{
		Deploy:      true,
		CycleLength: cycle,
		Sound:       []score.Tag{{Instrument: "sine", Notes: []int{60, 62}, Rhythm: []float64{1, 1}}},
	}
	if err := e.OnCompositionReceived(s); err != nil {
		t.Fatalf("receive: %v", err)
	}
	e.Start()
	frames := int(tick.Seconds() * testRate)
	buf := make([]float32, int(seconds*testRate)*2)
	for pos := 0; pos+frames <= len(buf)/2; pos += frames {
		e.Tick()
		m.Process(buf[pos*2 : (pos+frames)*2])
	}
	return buf
}

func TestEveryCycleOpensAtSustain(t *testing.T) {
	for _, tc := range []struct {
		cycle float64
		tick  time.Duration
	}{
		{1.04, 100 * time.Millisecond},
		{2.01, 50 * time.Millisecond},
		{1, 100 * time.Millisecond},
	} {
		buf := loop(t, tc.cycle, tc.tick, 4*tc.cycle+0.5)
		half := tc.cycle / 2
		for k := 0; k < 4; k++ {
			start := float64(k) * tc.cycle
			for n, at := range []float64{start, start + half} {
				from := int((at + 0.1) * testRate)
				to := int((at + half - 0.05) * testRate)
				if p := peak(buf, from, to); p < 0.08 {
					t.Fatalf("%v s cycle @ %v: note %d of cycle %d peaks at %.4f", tc.cycle, tc.tick, n, k, p)
				}
			}
		}
	}
}

package voice

import (
	"math"
	"sort"
)

// change is one scheduled parameter change. With tau > 0 the parameter
// approaches target exponentially from time at:
//
//	v(t) = target + (v(at) - target) * exp(-(t - at) / tau)
//
// With tau == 0 the value jumps to target at time at.
type change struct {
	at     float64
	target float64
	tau    float64
}

type param struct {
	value   float64
	target  float64
	coef    float64 // per-frame approach factor, 1 = jump
	pending []change
}

func newParam(v float64) param {
	return param{value: v, target: v, coef: 1}
}

// schedule inserts c after any change already queued for the same time.
func (p *param) schedule(c change) {
	i := sort.Search(len(p.pending), func(i int) bool { return p.pending[i].at > c.at })
	p.pending = append(p.pending, change{})
	copy(p.pending[i+1:], p.pending[i:])
	p.pending[i] = c
}

// advance applies every change due at time t and steps the value by one
// frame of length dt.
func (p *param) advance(t, dt float64) float64 {
	for len(p.pending) > 0 && p.pending[0].at <= t {
		c := p.pending[0]
		p.pending = p.pending[1:]
		p.target = c.target
		if c.tau <= 0 {
			p.value = c.target
			p.coef = 1
			continue
		}
		p.coef = 1 - math.Exp(-dt/c.tau)
	}
	if p.value != p.target {
		p.value += (p.target - p.value) * p.coef
		if math.Abs(p.target-p.value) < 1e-7 {
			p.value = p.target
		}
	}
	return p.value
}

// idle reports whether nothing is queued and the value has settled.
func (p *param) idle() bool {
	return len(p.pending) == 0 && p.value == p.target
}

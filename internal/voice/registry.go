package voice

import (
	"sort"
	"strings"
	"sync"
)

// Kind is the waveform of an oscillator voice.
type Kind int

const (
	Sine Kind = iota
	Square
	Triangle
	Sawtooth
)

func (k Kind) String() string {
	switch k {
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	case Sawtooth:
		return "sawtooth"
	default:
		return "sine"
	}
}

// FallbackName is the instrument name that always resolves to the fallback kind.
const FallbackName = "fallback"

// Registry maps instrument names to voice kinds. Lookups never fail: unknown
// names resolve to the fallback kind.
type Registry struct {
	mu       sync.RWMutex
	kinds    map[string]Kind
	fallback Kind
}

// NewRegistry returns a registry with every built-in kind registered under its
// own name and a sine fallback.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[string]Kind), fallback: Sine}
	for _, k := range []Kind{Sine, Square, Triangle, Sawtooth} {
		r.kinds[k.String()] = k
	}
	r.kinds["saw"] = Sawtooth
	return r
}

// Register binds name to kind, replacing any previous binding.
func (r *Registry) Register(name string, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[normalize(name)] = kind
}

func (r *Registry) SetFallback(kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = kind
}

// Lookup resolves name; known is false when the fallback was used.
func (r *Registry) Lookup(name string) (kind Kind, known bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := normalize(name)
	if n == FallbackName {
		return r.fallback, true
	}
	if k, ok := r.kinds[n]; ok {
		return k, true
	}
	return r.fallback, false
}

// Names lists registered instrument names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds)+1)
	for name := range r.kinds {
		out = append(out, name)
	}
	out = append(out, FallbackName)
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

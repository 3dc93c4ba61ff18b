package probability

import (
	"math/rand/v2"
	"sync"
)

// Source yields uniform values in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Selector draws prizes from tables. It is safe for concurrent use.
type Selector struct {
	mu  sync.Mutex
	src Source
}

// NewSelector uses src for every draw. A nil src falls back to the runtime's
// automatically seeded generator.
func NewSelector(src Source) *Selector {
	if src == nil {
		src = globalSource{}
	}
	return &Selector{src: src}
}

// NewSeededSelector returns a selector whose sequence is reproducible.
func NewSeededSelector(seed1, seed2 uint64) *Selector {
	return NewSelector(rand.New(rand.NewPCG(seed1, seed2)))
}

func (s *Selector) Pick(t *Table) string {
	s.mu.Lock()
	u := s.src.Float64()
	s.mu.Unlock()
	return t.Select(u)
}

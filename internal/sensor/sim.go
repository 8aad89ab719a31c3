package sensor

import (
	"context"
	"sync"
)

// Sim sweeps a triangle wave over [0, peak] so a bench setup sees a knee
// bending and straightening without hardware attached.
type Sim struct {
	mu   sync.Mutex
	peak int
	step int
	pos  int
	dir  int
}

func NewSim(peak int) *Sim {
	step := peak / 16
	if step < 1 {
		step = 1
	}
	return &Sim{peak: peak, step: step, dir: 1}
}

func (s *Sim) Read(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.pos
	next := s.pos + s.dir*s.step
	switch {
	case next >= s.peak:
		next = s.peak
		s.dir = -1
	case next <= 0:
		next = 0
		s.dir = 1
	}
	s.pos = next
	return v, nil
}

func (s *Sim) Close() error { return nil }

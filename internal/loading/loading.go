// Package loading tracks pending units of background work.
package loading

import (
	"context"
	"sync"

	"github.com/fruitsalade/webclient/internal/metrics"
)

// Service counts pending units. The zero value is not usable; use New.
type Service struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

// New creates an idle Service.
func New() *Service {
	idle := make(chan struct{})
	close(idle)
	return &Service{idle: idle}
}

// Register adds one pending unit and returns the function that resolves it.
// Calling the returned function more than once has no further effect.
func (s *Service) Register() func() {
	s.mu.Lock()
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
	metrics.SetLoadingPending(s.pending)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(s.resolve)
	}
}

func (s *Service) resolve() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	metrics.SetLoadingPending(s.pending)
	if s.pending == 0 {
		close(s.idle)
	}
}

// AddTask runs fn in the background as one pending unit.
func (s *Service) AddTask(fn func() error) <-chan error {
	done := s.Register()
	errc := make(chan error, 1)
	go func() {
		defer done()
		errc <- fn()
	}()
	return errc
}

// IsLoading reports whether any unit is pending.
func (s *Service) IsLoading() bool {
	return s.Pending() > 0
}

// Pending returns the number of pending units.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Wait blocks until no unit is pending or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

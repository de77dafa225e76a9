package native

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// FrameInterval is the LoopServer tick period
const FrameInterval = 16 * time.Millisecond

// LoopServer is an in-process server whose loop runs only while resumed
type LoopServer struct {
	interval time.Duration
	tick     func()
	ticks    atomic.Uint64

	mu          sync.Mutex
	initialized bool
	stop        chan struct{}
	done        chan struct{}
}

// NewLoopServer creates a loop server; tick may be nil
func NewLoopServer(interval time.Duration, tick func()) *LoopServer {
	if interval <= 0 {
		interval = FrameInterval
	}
	return &LoopServer{interval: interval, tick: tick}
}

// Init starts the loop
func (s *LoopServer) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.startLocked()
	return nil
}

// Pause stops the loop and waits for it to exit
func (s *LoopServer) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	return s.stopLocked(ctx)
}

// Resume restarts the loop if it is not running
func (s *LoopServer) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	s.startLocked()
	return nil
}

// Shutdown stops the loop
func (s *LoopServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

// Running reports whether the loop goroutine is active
func (s *LoopServer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Ticks returns the number of completed iterations
func (s *LoopServer) Ticks() uint64 {
	return s.ticks.Load()
}

func (s *LoopServer) startLocked() {
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *LoopServer) stopLocked(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	close(s.stop)
	done := s.done
	s.stop, s.done = nil, nil

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *LoopServer) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if s.tick != nil {
				s.tick()
			}
			s.ticks.Add(1)
		}
	}
}

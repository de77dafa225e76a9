package terminal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/x11host/internal/shared/id"
)

// ErrSessionClosed is returned for I/O on a session whose shell has exited
var ErrSessionClosed = errors.New("session is closed")

// ErrInvalidSize is returned by Resize for sizes outside 1..MaxDimension
var ErrInvalidSize = errors.New("invalid terminal size")

// subscriberBuffer is the per-subscriber channel depth; slow readers drop output
const subscriberBuffer = 64

// Session is one running shell bound to a home directory
type Session struct {
	ID        id.SessionID
	Shell     string
	HomeDir   string
	Env       Environment
	StartedAt time.Time

	proc       Process
	pid        int
	scrollback *Scrollback
	done       chan struct{}

	// guarded by Manager.mu
	stopping bool

	mu      sync.RWMutex
	cols    int
	rows    int
	exited  bool
	subs    map[int]chan []byte
	nextSub int
}

func newSession(shell string, env Environment, proc Process, cfg Config) *Session {
	return &Session{
		ID:         id.NewSessionID(),
		Shell:      shell,
		HomeDir:    env.HomeDir,
		Env:        env,
		StartedAt:  time.Now(),
		proc:       proc,
		pid:        proc.PID(),
		scrollback: NewScrollback(cfg.Scrollback),
		done:       make(chan struct{}),
		cols:       cfg.Cols,
		rows:       cfg.Rows,
		subs:       make(map[int]chan []byte),
	}
}

// PID returns the shell process id
func (s *Session) PID() int {
	return s.pid
}

// Done is closed once the shell has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Exited reports whether the shell has exited
func (s *Session) Exited() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exited
}

// Info returns a snapshot of the session
func (s *Session) Info() *SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &SessionInfo{
		ID:        s.ID,
		Shell:     s.Shell,
		HomeDir:   s.HomeDir,
		PID:       s.pid,
		Cols:      s.cols,
		Rows:      s.rows,
		StartedAt: s.StartedAt,
		Active:    !s.exited,
	}
}

// Write sends input to the shell
func (s *Session) Write(p []byte) (int, error) {
	if s.Exited() {
		return 0, ErrSessionClosed
	}
	return s.proc.Write(p)
}

// Resize changes the terminal dimensions
func (s *Session) Resize(cols, rows int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited {
		return ErrSessionClosed
	}
	if !ValidSize(cols, rows) {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, cols, rows)
	}
	if err := s.proc.Resize(cols, rows); err != nil {
		return err
	}
	s.cols, s.rows = cols, rows
	return nil
}

// Snapshot returns the retained scrollback
func (s *Session) Snapshot() []byte {
	return s.scrollback.Snapshot()
}

// Subscribe streams output produced after the call. The channel is closed
// when the shell exits or cancel is called.
func (s *Session) Subscribe() (<-chan []byte, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	if s.exited {
		close(ch)
		return ch, func() {}
	}

	key := s.nextSub
	s.nextSub++
	s.subs[key] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[key]; ok {
			delete(s.subs, key)
			close(sub)
		}
	}
	return ch, cancel
}

// pump copies shell output into scrollback and subscribers until EOF
func (s *Session) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := s.proc.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.scrollback.Write(chunk)
			s.broadcast(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) broadcast(chunk []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ch := range s.subs {
		select {
		case ch <- chunk:
		default:
		}
	}
}

func (s *Session) markExited() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exited {
		return
	}
	s.exited = true
	close(s.done)
	for key, ch := range s.subs {
		delete(s.subs, key)
		close(ch)
	}
}

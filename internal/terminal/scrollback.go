package terminal

import (
	"bytes"
	"sync"
)

// maxPartial bounds an unterminated line before it is forced into history
const maxPartial = 64 << 10

// Scrollback keeps the most recent lines of terminal output
type Scrollback struct {
	mu      sync.RWMutex
	max     int
	lines   [][]byte
	head    int
	count   int
	partial []byte
}

// NewScrollback creates a buffer holding at most maxLines complete lines
func NewScrollback(maxLines int) *Scrollback {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &Scrollback{
		max:   maxLines,
		lines: make([][]byte, maxLines),
	}
}

// Write appends output, evicting the oldest lines beyond capacity
func (s *Scrollback) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rest := p
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			s.partial = append(s.partial, rest...)
			if len(s.partial) >= maxPartial {
				s.push(append([]byte(nil), s.partial...))
				s.partial = s.partial[:0]
			}
			break
		}
		line := make([]byte, 0, len(s.partial)+i+1)
		line = append(line, s.partial...)
		line = append(line, rest[:i+1]...)
		s.partial = s.partial[:0]
		s.push(line)
		rest = rest[i+1:]
	}
	return len(p), nil
}

func (s *Scrollback) push(line []byte) {
	idx := (s.head + s.count) % s.max
	if s.count == s.max {
		s.head = (s.head + 1) % s.max
	} else {
		s.count++
	}
	s.lines[idx] = line
}

// Lines returns the number of complete lines held
func (s *Scrollback) Lines() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Snapshot returns retained output including any unterminated last line
func (s *Scrollback) Snapshot() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	for i := 0; i < s.count; i++ {
		buf.Write(s.lines[(s.head+i)%s.max])
	}
	buf.Write(s.partial)
	return buf.Bytes()
}

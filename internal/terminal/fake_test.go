package terminal

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

type fakeProcess struct {
	pid  int
	spec Spec

	outR *io.PipeReader
	outW *io.PipeWriter

	mu    sync.Mutex
	input bytes.Buffer
	cols  int
	rows  int

	exit     chan struct{}
	exitOnce sync.Once
	finished atomic.Bool
}

func newFakeProcess(pid int, spec Spec) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{
		pid:  pid,
		spec: spec,
		outR: r,
		outW: w,
		cols: spec.Cols,
		rows: spec.Rows,
		exit: make(chan struct{}),
	}
}

func (p *fakeProcess) Read(b []byte) (int, error) { return p.outR.Read(b) }

func (p *fakeProcess) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.Write(b)
}

func (p *fakeProcess) PID() int { return p.pid }

func (p *fakeProcess) Resize(cols, rows int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cols, p.rows = cols, rows
	return nil
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) Finish() error {
	p.finished.Store(true)
	p.terminate()
	return nil
}

// emit writes shell output; it blocks until the session reads it
func (p *fakeProcess) emit(s string) {
	p.outW.Write([]byte(s))
}

func (p *fakeProcess) terminate() {
	p.exitOnce.Do(func() {
		p.outW.Close()
		close(p.exit)
	})
}

func (p *fakeProcess) received() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.String()
}

type fakeLauncher struct {
	mu    sync.Mutex
	procs []*fakeProcess
	err   error
}

func (l *fakeLauncher) Launch(spec Spec) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	p := newFakeProcess(1000+len(l.procs), spec)
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *fakeLauncher) launched() []*fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*fakeProcess(nil), l.procs...)
}

type fakeResolver struct {
	mu      sync.Mutex
	home    string
	granted bool
}

func (r *fakeResolver) Resolve() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.home
}

func (r *fakeResolver) Granted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.granted
}

func (r *fakeResolver) set(home string, granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.home, r.granted = home, granted
}

type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (r *statusRecorder) Report(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *statusRecorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s.Message)
	}
	return out
}

func (r *statusRecorder) has(kind StatusKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.statuses {
		if s.Kind == kind {
			return true
		}
	}
	return false
}

var errLaunch = errors.New("exec format error")

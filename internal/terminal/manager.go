package terminal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/x11host/internal/shared/paths"
)

// ErrNoSession is returned for I/O when no session is running
var ErrNoSession = errors.New("no terminal session")

// Options carries the optional collaborators of a Manager
type Options struct {
	Status  StatusReporter
	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Manager owns the single interactive shell session
type Manager struct {
	resolver HomeResolver
	launcher Launcher
	layout   paths.Layout
	cfg      Config
	status   StatusReporter
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	mu      sync.Mutex
	current *Session
	// lastFailed marks a failed launch for the next Reconcile to retry
	lastFailed bool
}

// NewManager creates a session manager
func NewManager(resolver HomeResolver, launcher Launcher, layout paths.Layout, cfg Config, opts Options) *Manager {
	if launcher == nil {
		launcher = PTYLauncher{}
	}
	status := opts.Status
	if status == nil {
		status = StatusFunc(func(Status) {})
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Manager{
		resolver: resolver,
		launcher: launcher,
		layout:   layout,
		cfg:      cfg,
		status:   status,
		logger:   logger.For("terminal"),
		metrics:  opts.Metrics,
	}
}

// Start launches a session unless one is already running. A session whose
// shell has exited is replaced.
func (m *Manager) Start(ctx context.Context) (*SessionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.current; s != nil {
		if !s.Exited() {
			return s.Info(), nil
		}
		m.stopLocked()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, err := m.startLocked()
	if err != nil {
		return nil, err
	}
	return s.Info(), nil
}

// Stop terminates the current session. It is a no-op without one.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFailed = false
	return m.stopLocked()
}

// Reconcile replaces the current session when the resolved home directory
// no longer matches the one it was started with, and retries a launch that
// failed last time. It reports whether a new session was created.
func (m *Manager) Reconcile(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		if !m.lastFailed {
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, err
		}
		m.logger.Info("Retrying failed session launch")
		if _, err := m.startLocked(); err != nil {
			return false, err
		}
		return true, nil
	}

	want := m.resolver.Resolve()
	if s.HomeDir == want {
		return false, nil
	}

	m.logger.Info("Home directory changed, recreating session",
		zap.String("session_id", s.ID.String()),
		zap.String("from", s.HomeDir),
		zap.String("to", want))

	if err := m.stopLocked(); err != nil {
		m.logger.Warn("Failed to finish stale session", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := m.startLocked(); err != nil {
		return false, err
	}
	m.metrics.RecordSessionRecreated()
	return true, nil
}

// Current returns the current session, if any
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.current != nil
}

// Info describes the current session, if any
func (m *Manager) Info() (*SessionInfo, bool) {
	s, ok := m.Current()
	if !ok {
		return nil, false
	}
	return s.Info(), true
}

// Write sends input to the current session
func (m *Manager) Write(p []byte) (int, error) {
	s, ok := m.Current()
	if !ok {
		return 0, ErrNoSession
	}
	return s.Write(p)
}

// Resize resizes the current session's terminal
func (m *Manager) Resize(cols, rows int) error {
	s, ok := m.Current()
	if !ok {
		return ErrNoSession
	}
	return s.Resize(cols, rows)
}

func (m *Manager) startLocked() (*Session, error) {
	granted := m.resolver.Granted()
	home := m.resolver.Resolve()
	env := BuildEnvironment(home, m.layout, m.cfg)

	if err := os.MkdirAll(env.BinPath, 0o755); err != nil {
		m.logger.Warn("Failed to create bin directory",
			zap.String("path", env.BinPath), zap.Error(err))
	}

	proc, err := m.launcher.Launch(Spec{
		Command: m.cfg.Shell,
		Dir:     home,
		Env:     env.Env,
		Cols:    m.cfg.Cols,
		Rows:    m.cfg.Rows,
	})
	if err != nil {
		m.logger.Error("Failed to launch shell",
			zap.String("shell", m.cfg.Shell),
			zap.String("home", home),
			zap.Error(err))
		m.report(Status{Kind: StatusFailed, Message: fmt.Sprintf("Terminal failed to start: %v", err)})
		m.lastFailed = true
		return nil, fmt.Errorf("launch %s: %w", m.cfg.Shell, err)
	}

	s := newSession(m.cfg.Shell, env, proc, m.cfg)
	m.current = s
	m.lastFailed = false
	m.metrics.RecordSessionStarted()

	go s.pump()
	go m.monitor(s)

	m.logger.Info("Session started",
		zap.String("session_id", s.ID.String()),
		zap.String("home", home),
		zap.Int("pid", s.PID()),
		zap.Bool("permission_granted", granted))

	if !granted {
		m.report(Status{Kind: StatusDegraded, Message: MsgDegraded, SessionID: s.ID})
	}
	m.report(Status{
		Kind:      StatusRunning,
		Message:   fmt.Sprintf("PID %d", s.PID()),
		SessionID: s.ID,
		PID:       s.PID(),
	})
	return s, nil
}

func (m *Manager) stopLocked() error {
	s := m.current
	if s == nil {
		return nil
	}
	m.current = nil
	s.stopping = true

	if s.Exited() {
		return nil
	}

	m.metrics.RecordSessionStopped()
	m.logger.Info("Stopping session",
		zap.String("session_id", s.ID.String()),
		zap.Int("pid", s.PID()))

	if err := s.proc.Finish(); err != nil {
		return fmt.Errorf("finish session %s: %w", s.ID, err)
	}
	return nil
}

// monitor waits for the shell to exit and reports it when nobody asked for it
func (m *Manager) monitor(s *Session) {
	err := s.proc.Wait()
	s.markExited()

	m.mu.Lock()
	unexpected := m.current == s && !s.stopping
	m.mu.Unlock()

	if !unexpected {
		return
	}

	fields := []zap.Field{
		zap.String("session_id", s.ID.String()),
		zap.Int("pid", s.PID()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	m.logger.Info("Shell exited", fields...)
	m.metrics.RecordSessionStopped()
	m.report(Status{Kind: StatusExited, Message: MsgExited, SessionID: s.ID, PID: s.PID()})
}

func (m *Manager) report(st Status) {
	st.At = time.Now()
	m.status.Report(st)
}

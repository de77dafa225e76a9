package native

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/resilience"
)

// DefaultBinary is the native server executable. Release builds set it with
// -ldflags "-X github.com/GriffinCanCode/x11host/internal/native.DefaultBinary=...".
var DefaultBinary = "x11-server"

// ProcessConfig configures a ProcessServer
type ProcessConfig struct {
	Binary           string
	Args             []string
	Dir              string
	Env              []string
	RelaunchFailures int
	RelaunchCooldown time.Duration
	// Now overrides the breaker clock, for tests
	Now func() time.Time
}

// ProcessServer runs the native server as a child process
type ProcessServer struct {
	cfg     ProcessConfig
	breaker *resilience.Breaker
	logger  *logging.Logger

	mu   sync.Mutex
	proc *child
}

// child is one launch of the binary. err is written before exited is closed.
type child struct {
	cmd    *exec.Cmd
	exited chan struct{}
	err    error
}

// NewProcessServer creates a process-backed server
func NewProcessServer(cfg ProcessConfig, logger *logging.Logger) *ProcessServer {
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.RelaunchFailures <= 0 {
		cfg.RelaunchFailures = 3
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.For("native-process")

	failures := uint32(cfg.RelaunchFailures)
	breaker := resilience.New("native-relaunch", resilience.Settings{
		Timeout: cfg.RelaunchCooldown,
		Now:     cfg.Now,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Relaunch breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &ProcessServer{
		cfg:     cfg,
		breaker: breaker,
		logger:  logger,
	}
}

// Init launches the server process
func (s *ProcessServer) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return nil
	}
	return s.startLocked()
}

// Pause stops the process with SIGSTOP
func (s *ProcessServer) Pause(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc == nil {
		return ErrNotInitialized
	}
	if !s.runningLocked() {
		return ErrNotRunning
	}
	return s.signalLocked(unix.SIGSTOP)
}

// Resume continues a stopped process, or relaunches it if it has exited.
// Relaunches are refused while the breaker is open.
func (s *ProcessServer) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() {
		return s.signalLocked(unix.SIGCONT)
	}

	var lastExit error
	if s.proc != nil {
		lastExit = s.proc.err
	}
	s.logger.Info("Native server not running, relaunching",
		zap.String("binary", s.cfg.Binary),
		zap.NamedError("last_exit", lastExit))
	return s.breaker.Execute(s.startLocked)
}

// Shutdown terminates the process, escalating to SIGKILL when ctx ends first
func (s *ProcessServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.runningLocked() {
		return nil
	}

	// a stopped process does not act on SIGTERM until continued
	for _, sig := range []unix.Signal{unix.SIGCONT, unix.SIGTERM} {
		if err := s.signalLocked(sig); err != nil {
			if errors.Is(err, ErrNotRunning) {
				return nil
			}
			return err
		}
	}

	select {
	case <-s.proc.exited:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Native server ignored SIGTERM, killing", zap.Int("pid", s.proc.cmd.Process.Pid))
		if err := s.signalLocked(unix.SIGKILL); err != nil && !errors.Is(err, ErrNotRunning) {
			return err
		}
		<-s.proc.exited
		return ctx.Err()
	}
}

// PID returns the current process id, or zero when not running
func (s *ProcessServer) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.runningLocked() {
		return 0
	}
	return s.proc.cmd.Process.Pid
}

// BreakerState reports the relaunch breaker state
func (s *ProcessServer) BreakerState() resilience.State {
	return s.breaker.State()
}

func (s *ProcessServer) runningLocked() bool {
	if s.proc == nil {
		return false
	}
	select {
	case <-s.proc.exited:
		return false
	default:
		return true
	}
}

func (s *ProcessServer) startLocked() error {
	cmd := exec.Command(s.cfg.Binary, s.cfg.Args...)
	cmd.Dir = s.cfg.Dir
	if s.cfg.Env != nil {
		cmd.Env = s.cfg.Env
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", s.cfg.Binary, err)
	}

	c := &child{cmd: cmd, exited: make(chan struct{})}
	s.proc = c

	go func() {
		err := cmd.Wait()
		c.err = err
		close(c.exited)

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			s.logger.Warn("Waiting on native server failed", zap.Error(err))
			return
		}
		s.logger.Info("Native server exited",
			zap.Int("pid", cmd.Process.Pid),
			zap.String("state", cmd.ProcessState.String()))
	}()

	s.logger.Info("Native server started",
		zap.String("binary", s.cfg.Binary),
		zap.Int("pid", cmd.Process.Pid))
	return nil
}

func (s *ProcessServer) signalLocked(sig unix.Signal) error {
	pid := s.proc.cmd.Process.Pid
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return ErrNotRunning
		}
		return fmt.Errorf("signal %s to %d: %w", unix.SignalName(sig), pid, err)
	}
	return nil
}

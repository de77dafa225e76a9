package native

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/resilience"
)

func requireSleep(t *testing.T) string {
	t.Helper()
	for _, p := range []string{"/bin/sleep", "/usr/bin/sleep"} {
		if _, err := os.Stat(p); err == nil {
			if _, err := os.Stat("/proc/self/stat"); err != nil {
				t.Skip("procfs not available")
			}
			return p
		}
	}
	t.Skip("sleep not available")
	return ""
}

// procState returns the scheduler state letter from /proc/<pid>/stat
func procState(pid int) string {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return ""
	}
	// the command name is parenthesized and may contain spaces
	rest := string(data[strings.LastIndexByte(string(data), ')')+1:])
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func TestProcessServerLifecycle(t *testing.T) {
	bin := requireSleep(t)
	s := NewProcessServer(ProcessConfig{Binary: bin, Args: []string{"30"}}, nil)
	ctx := context.Background()

	assert.ErrorIs(t, s.Pause(ctx), ErrNotInitialized)

	require.NoError(t, s.Init(ctx))
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Shutdown(shutdownCtx)
	})

	pid := s.PID()
	require.Positive(t, pid)

	// Init on a running server does not launch a second process
	require.NoError(t, s.Init(ctx))
	assert.Equal(t, pid, s.PID())

	require.NoError(t, s.Pause(ctx))
	assert.Eventually(t, func() bool { return procState(pid) == "T" }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Resume(ctx))
	assert.Eventually(t, func() bool { return procState(pid) != "T" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, pid, s.PID())
}

func TestProcessServerRelaunchesExited(t *testing.T) {
	bin := requireSleep(t)
	s := NewProcessServer(ProcessConfig{Binary: bin, Args: []string{"0"}}, nil)
	ctx := context.Background()

	require.NoError(t, s.Init(ctx))
	assert.Eventually(t, func() bool { return s.PID() == 0 }, 2*time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, s.Pause(ctx), ErrNotRunning)
	require.NoError(t, s.Resume(ctx))
}

func TestProcessServerShutdown(t *testing.T) {
	bin := requireSleep(t)
	s := NewProcessServer(ProcessConfig{Binary: bin, Args: []string{"30"}}, nil)
	ctx := context.Background()

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Pause(ctx))

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(shutdownCtx))
	assert.Zero(t, s.PID())

	// shutting down a stopped server is a no-op
	require.NoError(t, s.Shutdown(shutdownCtx))
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestProcessServerRelaunchBreaker(t *testing.T) {
	clock := &manualClock{now: time.Unix(1700000000, 0)}
	missing := filepath.Join(t.TempDir(), "no-such-server")

	s := NewProcessServer(ProcessConfig{
		Binary:           missing,
		RelaunchFailures: 2,
		RelaunchCooldown: time.Minute,
		Now:              clock.Now,
	}, nil)
	ctx := context.Background()

	assert.Error(t, s.Init(ctx))

	assert.Error(t, s.Resume(ctx))
	assert.Equal(t, resilience.StateClosed, s.BreakerState())

	assert.Error(t, s.Resume(ctx))
	assert.Equal(t, resilience.StateOpen, s.BreakerState())

	assert.ErrorIs(t, s.Resume(ctx), resilience.ErrCircuitOpen)

	clock.Advance(time.Minute + time.Second)
	assert.Equal(t, resilience.StateHalfOpen, s.BreakerState())
}

func TestProcessServerDefaultBinary(t *testing.T) {
	s := NewProcessServer(ProcessConfig{}, nil)
	assert.Equal(t, DefaultBinary, s.cfg.Binary)
	assert.Equal(t, 3, s.cfg.RelaunchFailures)
}

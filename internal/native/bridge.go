package native

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/monitoring"
)

// Bridge forwards lifecycle calls to a Server
type Bridge struct {
	server  Server
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu    sync.Mutex
	state State
}

// NewBridge creates a bridge for server
func NewBridge(server Server, logger *logging.Logger, metrics *monitoring.Metrics) *Bridge {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bridge{
		server:  server,
		logger:  logger.For("native"),
		metrics: metrics,
		state:   StateUninitialized,
	}
}

// State returns the last state the server was successfully moved to
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Init initializes the server
func (b *Bridge) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.call(ctx, "init", b.server.Init, StateInitialized)
}

// Pause signals the server that the host went to the background
func (b *Bridge) Pause(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.call(ctx, "pause", b.server.Pause, StatePaused)
}

// Resume signals the server that the host is in the foreground
func (b *Bridge) Resume(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.call(ctx, "resume", b.server.Resume, StateResumed)
}

// Restart pauses and immediately resumes the server. Resume is attempted
// even when pause fails.
func (b *Bridge) Restart(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Info("Restarting native server")
	pauseErr := b.call(ctx, "pause", b.server.Pause, StatePaused)
	resumeErr := b.call(ctx, "resume", b.server.Resume, StateResumed)
	return errors.Join(pauseErr, resumeErr)
}

// Shutdown stops the server when it supports it
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stopper, ok := b.server.(Stopper)
	if !ok {
		b.logger.Debug("Native server has no shutdown hook")
		return nil
	}
	return b.call(ctx, "shutdown", stopper.Shutdown, StateStopped)
}

func (b *Bridge) call(ctx context.Context, signal string, fn func(context.Context) error, next State) error {
	start := time.Now()
	err := fn(ctx)
	b.metrics.RecordNativeSignal(signal, err, time.Since(start))

	if err != nil {
		b.logger.Warn("Native server call failed",
			zap.String("signal", signal),
			zap.String("state", string(b.state)),
			zap.Error(err))
		return err
	}

	b.logger.Debug("Native server call",
		zap.String("signal", signal),
		zap.String("from", string(b.state)),
		zap.String("to", string(next)))
	b.state = next
	return nil
}

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/x11host/internal/bootstrap"
	"github.com/GriffinCanCode/x11host/internal/home"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/x11host/internal/terminal"
)

// ErrStopped is returned when dispatching to a coordinator that has exited
var ErrStopped = errors.New("coordinator stopped")

// teardownTimeout bounds the destroy sequence run after the loop context ends
const teardownTimeout = 5 * time.Second

// Extractor performs the one-time archive bootstrap
type Extractor interface {
	EnsureExtracted(ctx context.Context) (bootstrap.Result, error)
}

// Sessions manages the shell session
type Sessions interface {
	Start(ctx context.Context) (*terminal.SessionInfo, error)
	Stop() error
	Reconcile(ctx context.Context) (bool, error)
}

// Native forwards calls to the native server
type Native interface {
	Init(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Restart(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// CursorView blinks the terminal cursor while the host is visible
type CursorView interface {
	SetCursorBlink(on bool)
}

// Deps are the components the coordinator drives
type Deps struct {
	Extractor  Extractor
	Sessions   Sessions
	Native     Native
	Permission home.PermissionChecker
	Requester  home.PermissionRequester
	Cursor     CursorView
}

// Options tunes the coordinator
type Options struct {
	StopNativeOnDestroy bool
	Logger              *logging.Logger
	Metrics             *monitoring.Metrics
}

type envelope struct {
	event Event
	ack   chan struct{}
}

// Coordinator runs lifecycle events through Transition on one goroutine
type Coordinator struct {
	deps    Deps
	logger  *logging.Logger
	metrics *monitoring.Metrics

	events chan envelope
	ready  chan struct{}
	done   chan struct{}

	mu    sync.RWMutex
	state State

	// owned by the loop goroutine
	cancelExtract context.CancelFunc
	extractDone   chan struct{}
}

// New creates a coordinator in the idle phase
func New(deps Deps, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		deps:    deps,
		logger:  logger.For("lifecycle"),
		metrics: opts.Metrics,
		events:  make(chan envelope, 32),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		state: State{
			Phase:               PhaseIdle,
			StopNativeOnDestroy: opts.StopNativeOnDestroy,
		},
	}
}

// State returns a snapshot of the coordinator state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Ready is closed once bootstrap has finished and the session has started
func (c *Coordinator) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when Run returns
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Dispatch queues an event without waiting for it to be handled
func (c *Coordinator) Dispatch(kind EventKind) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	select {
	case c.events <- envelope{event: Event{Kind: kind}}:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// Do queues an event and waits until its commands have run
func (c *Coordinator) Do(ctx context.Context, kind EventKind) error {
	select {
	case <-c.done:
		return ErrStopped
	default:
	}

	ack := make(chan struct{})
	select {
	case c.events <- envelope{event: Event{Kind: kind}, ack: ack}:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until a Destroyed event is handled or ctx ends.
// When ctx ends first the destroy sequence still runs.
func (c *Coordinator) Run(ctx context.Context) error {
	defer close(c.done)

	for {
		select {
		case env := <-c.events:
			c.handle(ctx, env.event)
			if env.ack != nil {
				close(env.ack)
			}
			if c.State().Phase == PhaseDestroyed {
				c.waitExtract()
				return nil
			}

		case <-ctx.Done():
			c.logger.Info("Context ended, tearing down")
			teardown, cancel := context.WithTimeout(context.Background(), teardownTimeout)
			c.handle(teardown, Event{Kind: EventDestroyed})
			cancel()
			c.waitExtract()
			return ctx.Err()
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, e Event) {
	if e.Kind == EventCreated && c.deps.Permission != nil {
		e.PermissionGranted = c.deps.Permission.Granted()
	}

	c.mu.Lock()
	prev := c.state
	next, cmds, accepted := transition(prev, e)
	c.state = next
	c.mu.Unlock()

	c.metrics.RecordLifecycleEvent(string(e.Kind))

	if !accepted {
		c.logger.Info("Ignoring lifecycle event",
			zap.String("event", string(e.Kind)),
			zap.String("phase", string(prev.Phase)))
		return
	}

	c.logger.Debug("Lifecycle event",
		zap.String("event", string(e.Kind)),
		zap.String("from", string(prev.Phase)),
		zap.String("to", string(next.Phase)),
		zap.Bool("visible", next.Visible),
		zap.Int("commands", len(cmds)))

	for _, cmd := range cmds {
		c.execute(ctx, cmd)
	}

	if prev.Phase != PhaseReady && next.Phase == PhaseReady {
		close(c.ready)
		c.logger.Info("Ready")
	}
}

// execute runs one command. Failures are logged; none of them stop the loop.
func (c *Coordinator) execute(ctx context.Context, cmd Command) {
	var err error

	switch cmd.Kind {
	case CmdRequestPermission:
		if c.deps.Requester != nil {
			err = c.deps.Requester.Request(ctx)
		}
	case CmdExtract:
		c.startExtract(ctx)
	case CmdCancelExtract:
		if c.cancelExtract != nil {
			c.cancelExtract()
		}
	case CmdStartSession:
		_, err = c.deps.Sessions.Start(ctx)
	case CmdStopSession:
		err = c.deps.Sessions.Stop()
	case CmdReconcileSession:
		var recreated bool
		recreated, err = c.deps.Sessions.Reconcile(ctx)
		if recreated {
			c.logger.Info("Session recreated after home directory change")
		}
	case CmdNativeInit:
		err = c.deps.Native.Init(ctx)
	case CmdNativePause:
		err = c.deps.Native.Pause(ctx)
	case CmdNativeResume:
		err = c.deps.Native.Resume(ctx)
	case CmdNativeRestart:
		err = c.deps.Native.Restart(ctx)
	case CmdNativeShutdown:
		err = c.deps.Native.Shutdown(ctx)
	case CmdCursorBlink:
		if c.deps.Cursor != nil {
			c.deps.Cursor.SetCursorBlink(cmd.On)
		}
	}

	if err != nil {
		c.logger.Warn("Lifecycle command failed",
			zap.String("command", cmd.String()),
			zap.Error(err))
	}
}

// startExtract runs the bootstrap off the loop and feeds BootstrapFinished
// back in. A failed extraction still finishes the bootstrap phase.
func (c *Coordinator) startExtract(ctx context.Context) {
	extractCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancelExtract = cancel
	c.extractDone = done

	go func() {
		defer close(done)
		defer cancel()

		res, err := c.deps.Extractor.EnsureExtracted(extractCtx)
		if err != nil {
			if extractCtx.Err() != nil {
				return
			}
			c.logger.Warn("Bootstrap finished without userland", zap.Error(err))
		} else {
			c.logger.Info("Bootstrap finished",
				zap.Bool("skipped", res.Skipped),
				zap.Int("entries", res.Entries))
		}

		select {
		case c.events <- envelope{event: Event{Kind: EventBootstrapFinished}}:
		case <-c.done:
		case <-extractCtx.Done():
		}
	}()
}

func (c *Coordinator) waitExtract() {
	if c.extractDone == nil {
		return
	}
	c.cancelExtract()
	<-c.extractDone
}

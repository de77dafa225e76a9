package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/x11host/internal/bootstrap"
	"github.com/GriffinCanCode/x11host/internal/terminal"
)

// recorder collects calls from every fake in order
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

type fakeExtractor struct {
	rec     *recorder
	release chan struct{}
	err     error
}

func (f *fakeExtractor) EnsureExtracted(ctx context.Context) (bootstrap.Result, error) {
	f.rec.add("extract")
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return bootstrap.Result{}, ctx.Err()
		}
	}
	return bootstrap.Result{Entries: 3}, f.err
}

type fakeSessions struct{ rec *recorder }

func (f *fakeSessions) Start(ctx context.Context) (*terminal.SessionInfo, error) {
	f.rec.add("session.start")
	return &terminal.SessionInfo{}, nil
}

func (f *fakeSessions) Stop() error {
	f.rec.add("session.stop")
	return nil
}

func (f *fakeSessions) Reconcile(ctx context.Context) (bool, error) {
	f.rec.add("session.reconcile")
	return false, nil
}

type fakeNative struct {
	rec *recorder
	err error
}

func (f *fakeNative) Init(ctx context.Context) error {
	f.rec.add("native.init")
	return f.err
}

func (f *fakeNative) Pause(ctx context.Context) error {
	f.rec.add("native.pause")
	return f.err
}

func (f *fakeNative) Resume(ctx context.Context) error {
	f.rec.add("native.resume")
	return f.err
}

func (f *fakeNative) Restart(ctx context.Context) error {
	f.rec.add("native.restart")
	return f.err
}

func (f *fakeNative) Shutdown(ctx context.Context) error {
	f.rec.add("native.shutdown")
	return f.err
}

type fakeCursor struct{ rec *recorder }

func (f *fakeCursor) SetCursorBlink(on bool) {
	if on {
		f.rec.add("cursor.on")
	} else {
		f.rec.add("cursor.off")
	}
}

type fakePermission struct {
	rec     *recorder
	granted bool
}

func (f *fakePermission) Granted() bool { return f.granted }

func (f *fakePermission) Request(ctx context.Context) error {
	f.rec.add("permission.request")
	return nil
}

type fixture struct {
	rec       *recorder
	extractor *fakeExtractor
	native    *fakeNative
	coord     *Coordinator
	cancel    context.CancelFunc
	runErr    chan error
}

func newFixture(t *testing.T, granted bool, opts Options) *fixture {
	t.Helper()

	rec := &recorder{}
	perm := &fakePermission{rec: rec, granted: granted}
	f := &fixture{
		rec:       rec,
		extractor: &fakeExtractor{rec: rec, release: make(chan struct{})},
		native:    &fakeNative{rec: rec},
		runErr:    make(chan error, 1),
	}
	f.coord = New(Deps{
		Extractor:  f.extractor,
		Sessions:   &fakeSessions{rec: rec},
		Native:     f.native,
		Permission: perm,
		Requester:  perm,
		Cursor:     &fakeCursor{rec: rec},
	}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.runErr <- f.coord.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-f.coord.Done():
		case <-time.After(2 * time.Second):
			t.Error("coordinator did not stop")
		}
	})
	return f
}

func (f *fixture) do(t *testing.T, kind EventKind) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.coord.Do(ctx, kind))
}

func (f *fixture) waitReady(t *testing.T) {
	t.Helper()
	select {
	case <-f.coord.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator never became ready")
	}
}

func TestStartupOrder(t *testing.T) {
	f := newFixture(t, false, Options{})

	f.do(t, EventCreated)
	f.do(t, EventResumed)
	assert.Equal(t, PhaseBootstrapping, f.coord.State().Phase)

	close(f.extractor.release)
	f.waitReady(t)

	assert.Equal(t, []string{
		"permission.request",
		"extract",
		"session.start",
		"native.init",
		"native.resume",
		"session.reconcile",
		"cursor.on",
	}, f.rec.list())
	assert.Equal(t, State{Phase: PhaseReady, Visible: true}, f.coord.State())
}

func TestStartupHiddenDefersResume(t *testing.T) {
	f := newFixture(t, true, Options{})

	f.do(t, EventCreated)
	f.do(t, EventResumed)
	f.do(t, EventPaused)
	close(f.extractor.release)
	f.waitReady(t)

	assert.Equal(t, []string{"extract", "session.start", "native.init"}, f.rec.list())

	f.rec.reset()
	f.do(t, EventResumed)
	assert.Equal(t, []string{"native.resume", "session.reconcile", "cursor.on"}, f.rec.list())
}

func TestFailedExtractionStillStarts(t *testing.T) {
	f := newFixture(t, true, Options{})
	f.extractor.err = errors.New("no bundled userland")

	f.do(t, EventCreated)
	close(f.extractor.release)
	f.waitReady(t)

	assert.Equal(t, []string{"extract", "session.start", "native.init"}, f.rec.list())
}

func TestPauseResumeCycle(t *testing.T) {
	f := newFixture(t, true, Options{})
	close(f.extractor.release)
	f.do(t, EventCreated)
	f.waitReady(t)
	f.rec.reset()

	f.do(t, EventResumed)
	f.do(t, EventPaused)
	f.do(t, EventResumed)

	assert.Equal(t, []string{
		"native.resume", "session.reconcile", "cursor.on",
		"cursor.off", "native.pause",
		"native.resume", "session.reconcile", "cursor.on",
	}, f.rec.list())
}

func TestRestartHasNoSessionEffects(t *testing.T) {
	f := newFixture(t, true, Options{})
	close(f.extractor.release)
	f.do(t, EventCreated)
	f.waitReady(t)
	f.do(t, EventResumed)
	f.rec.reset()

	f.do(t, EventRestartRequested)

	assert.Equal(t, []string{"native.restart"}, f.rec.list())
}

func TestRestartBeforeReadyIgnored(t *testing.T) {
	f := newFixture(t, true, Options{})

	f.do(t, EventCreated)
	f.do(t, EventRestartRequested)

	assert.Equal(t, []string{"extract"}, f.rec.list())
	assert.Equal(t, PhaseBootstrapping, f.coord.State().Phase)
}

func TestNativeFailuresDoNotStopLoop(t *testing.T) {
	f := newFixture(t, true, Options{})
	f.native.err = errors.New("native call failed")
	close(f.extractor.release)

	f.do(t, EventCreated)
	f.waitReady(t)
	f.do(t, EventResumed)

	assert.Equal(t, PhaseReady, f.coord.State().Phase)
	assert.Contains(t, f.rec.list(), "session.reconcile")
}

func TestDestroy(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"default keeps native running", Options{}, []string{"session.stop"}},
		{"stop native on destroy", Options{StopNativeOnDestroy: true}, []string{"session.stop", "native.shutdown"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true, tt.opts)
			close(f.extractor.release)
			f.do(t, EventCreated)
			f.waitReady(t)
			f.rec.reset()

			f.do(t, EventDestroyed)

			select {
			case err := <-f.runErr:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("run did not return")
			}
			assert.Equal(t, tt.want, f.rec.list())
			assert.ErrorIs(t, f.coord.Dispatch(EventResumed), ErrStopped)
		})
	}
}

func TestDestroyDuringBootstrapCancelsExtraction(t *testing.T) {
	f := newFixture(t, true, Options{})

	f.do(t, EventCreated)
	f.do(t, EventDestroyed)

	select {
	case <-f.coord.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}

	assert.Equal(t, []string{"extract", "session.stop"}, f.rec.list())
	select {
	case <-f.coord.Ready():
		t.Fatal("ready closed without bootstrap")
	default:
	}
}

func TestContextCancelTearsDown(t *testing.T) {
	f := newFixture(t, true, Options{})
	close(f.extractor.release)
	f.do(t, EventCreated)
	f.waitReady(t)
	f.rec.reset()

	f.cancel()

	select {
	case err := <-f.runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return")
	}
	assert.Equal(t, []string{"session.stop"}, f.rec.list())
	assert.Equal(t, PhaseDestroyed, f.coord.State().Phase)
}
